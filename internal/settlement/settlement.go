package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the processing state of a transaction.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusRefunding  Status = "refunding"
	StatusRefunded   Status = "refunded"
	StatusFixing     Status = "fixing"
)

// Location represents which part of the settlement network holds the funds.
type Location string

const (
	LocationOriginatorBank  Location = "originator_bank"
	LocationRoutable        Location = "routable"
	LocationDestinationBank Location = "destination_bank"
)

// ItemState classifies an item by the progress of its transactions.
type ItemState string

const (
	ItemStateProcessing ItemState = "processing"
	ItemStateCorrecting ItemState = "correcting"
	ItemStateError      ItemState = "error"
	ItemStateResolved   ItemState = "resolved"
)

// Item represents a single payment to be settled.
type Item struct {
	ID                  uuid.UUID
	Amount              decimal.Decimal
	State               ItemState
	HasErrored          bool
	ActiveTransactionID *uuid.UUID
	ActiveTransaction   *Transaction // Loaded via JOIN
	CreatedAt           time.Time
	UpdatedAt           *time.Time
}

// ActiveStatus returns the status of the item's active transaction, if any.
func (it *Item) ActiveStatus() (Status, bool) {
	if it.ActiveTransaction == nil {
		return "", false
	}

	return it.ActiveTransaction.Status, true
}

// ActiveLocation returns the location of the item's active transaction, if any.
func (it *Item) ActiveLocation() (Location, bool) {
	if it.ActiveTransaction == nil {
		return "", false
	}

	return it.ActiveTransaction.Location, true
}

// Reclassify recomputes the item's state from the status of its active
// transaction. created reports that the status belongs to a transaction just
// opened for the item. It returns true when the item changed and must be
// written back.
func (it *Item) Reclassify(status Status, created bool) bool {
	var next ItemState

	flagged := false

	switch {
	case created:
		if it.HasErrored {
			next = ItemStateCorrecting
		} else {
			next = ItemStateProcessing
		}
	case status == StatusError:
		next = ItemStateError

		if !it.HasErrored {
			it.HasErrored = true
			flagged = true
		}
	case status == StatusCompleted, status == StatusRefunded:
		next = ItemStateResolved
	}

	if !flagged && (next == "" || next == it.State) {
		return false
	}

	if next != "" {
		it.State = next
	}

	return true
}

// Transaction represents one settlement attempt for an item.
type Transaction struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	Status    Status
	Location  Location
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}
