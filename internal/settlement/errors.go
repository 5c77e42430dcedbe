package settlement

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound        = errors.New("item not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNoActiveTransaction is returned by lifecycle operations on an item
	// that has no active transaction to act on.
	ErrNoActiveTransaction = errors.New("item has no active transaction")
)

const (
	opMove   = "move"
	opError  = "error"
	opFix    = "fix"
	opRefund = "refund"
)

// InvalidStateError reports a status/location pair that no new transaction
// may start in.
type InvalidStateError struct {
	Status   Status
	Location Location
}

func (e *InvalidStateError) Error() string {
	if e.Status == "" || e.Location == "" {
		return "status and location are both required to start a transaction"
	}

	return fmt.Sprintf("invalid starting state %s/%s for a new transaction", e.Status, e.Location)
}

// InvalidTransitionError reports a lifecycle operation applied in a state
// that does not allow it.
type InvalidTransitionError struct {
	Op       string
	Status   Status
	Location Location
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s transaction in state %s/%s", e.Op, e.Status, e.Location)
}
