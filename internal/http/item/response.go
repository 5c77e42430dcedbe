package item

import (
	"time"

	"github.com/google/uuid"

	"github.com/cleargate/payline/internal/settlement"
)

type itemResponse struct {
	ID                  uuid.UUID            `json:"id"`
	Amount              string               `json:"amount"`
	State               settlement.ItemState `json:"state"`
	HasErrored          bool                 `json:"has_errored"`
	ActiveTransactionID *uuid.UUID           `json:"active_transaction_id,omitempty"`
	ActiveTransaction   *transactionResponse `json:"active_transaction,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           *time.Time           `json:"updated_at,omitempty"`
}

type transactionResponse struct {
	ID        uuid.UUID           `json:"id"`
	ItemID    uuid.UUID           `json:"item_id"`
	Status    settlement.Status   `json:"status"`
	Location  settlement.Location `json:"location"`
	IsActive  bool                `json:"is_active"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}

// actionResponse carries the item after a lifecycle action together with a
// human-readable status line.
type actionResponse struct {
	Status string       `json:"status"`
	Item   itemResponse `json:"item"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(it *settlement.Item) itemResponse {
	resp := itemResponse{
		ID:                  it.ID,
		Amount:              it.Amount.StringFixed(2),
		State:               it.State,
		HasErrored:          it.HasErrored,
		ActiveTransactionID: it.ActiveTransactionID,
		CreatedAt:           it.CreatedAt,
		UpdatedAt:           it.UpdatedAt,
	}

	if it.ActiveTransaction != nil {
		tx := toTransactionResponse(it.ActiveTransaction)
		resp.ActiveTransaction = &tx
	}

	return resp
}

func toTransactionResponse(t *settlement.Transaction) transactionResponse {
	return transactionResponse{
		ID:        t.ID,
		ItemID:    t.ItemID,
		Status:    t.Status,
		Location:  t.Location,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toResponseList(items []*settlement.Item) []itemResponse {
	resp := make([]itemResponse, len(items))
	for i, it := range items {
		resp[i] = toResponse(it)
	}

	return resp
}
