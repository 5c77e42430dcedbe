package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/cleargate/payline/internal/settlement"
)

type transactionResponse struct {
	ID        uuid.UUID           `json:"id"`
	ItemID    uuid.UUID           `json:"item_id"`
	Status    settlement.Status   `json:"status"`
	Location  settlement.Location `json:"location"`
	IsActive  bool                `json:"is_active"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(t *settlement.Transaction) transactionResponse {
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

func toResponseList(txs []*settlement.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = toResponse(t)
	}

	return resp
}
