package settlement

// State pairs a transaction's status with its location. The pair, not either
// field alone, determines which lifecycle operations are legal.
type State struct {
	Status   Status
	Location Location
}

var validStates = map[State]struct{}{
	{StatusProcessing, LocationOriginatorBank}: {},
	{StatusProcessing, LocationRoutable}:       {},
	{StatusCompleted, LocationDestinationBank}: {},
	{StatusError, LocationRoutable}:            {},
	{StatusRefunding, LocationRoutable}:        {},
	{StatusRefunded, LocationOriginatorBank}:   {},
	{StatusFixing, LocationRoutable}:           {},
}

var validStartStates = map[State]struct{}{
	{StatusProcessing, LocationOriginatorBank}: {},
	{StatusRefunding, LocationRoutable}:        {},
	{StatusFixing, LocationRoutable}:           {},
}

// Valid reports whether the pair is one of the states a transaction may occupy.
func (s State) Valid() bool {
	_, ok := validStates[s]
	return ok
}

// ValidStart reports whether a new transaction may open in this state.
func (s State) ValidStart() bool {
	if !s.Valid() {
		return false
	}

	_, ok := validStartStates[s]

	return ok
}

// Advance returns the state one step further along the settlement flow.
// Completed, errored and refunded transactions cannot advance; an errored
// transaction leaves its state only through fix or refund.
func (s State) Advance() (State, error) {
	switch s.Status {
	case StatusCompleted, StatusError, StatusRefunded:
		return s, &InvalidTransitionError{Op: opMove, Status: s.Status, Location: s.Location}
	}

	switch s.Location {
	case LocationOriginatorBank:
		return State{Status: s.Status, Location: LocationRoutable}, nil
	case LocationRoutable:
		switch s.Status {
		case StatusProcessing:
			return State{Status: StatusCompleted, Location: LocationDestinationBank}, nil
		case StatusFixing:
			return State{Status: StatusProcessing, Location: LocationRoutable}, nil
		case StatusRefunding:
			return State{Status: StatusRefunded, Location: LocationOriginatorBank}, nil
		}
	}

	return s, &InvalidTransitionError{Op: opMove, Status: s.Status, Location: s.Location}
}

// MarkError returns the errored state. Only a transaction still processing
// at the routable network may be marked errored.
func (s State) MarkError() (State, error) {
	if s.Status != StatusProcessing || s.Location != LocationRoutable {
		return s, &InvalidTransitionError{Op: opError, Status: s.Status, Location: s.Location}
	}

	return State{Status: StatusError, Location: LocationRoutable}, nil
}

// State returns the transaction's current status/location pair.
func (t *Transaction) State() State {
	return State{Status: t.Status, Location: t.Location}
}

// Advance moves the transaction one step along the settlement flow. On
// failure the transaction is left unchanged.
func (t *Transaction) Advance() error {
	next, err := t.State().Advance()
	if err != nil {
		return err
	}

	t.Status = next.Status
	t.Location = next.Location

	return nil
}

// MarkError flags the transaction as failed during routing. On failure the
// transaction is left unchanged.
func (t *Transaction) MarkError() error {
	next, err := t.State().MarkError()
	if err != nil {
		return err
	}

	t.Status = next.Status
	t.Location = next.Location

	return nil
}
