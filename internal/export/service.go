package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cleargate/payline/internal/settlement"
)

var csvHeader = []string{
	"id", "amount", "state", "has_errored",
	"transaction_status", "transaction_location", "created_at",
}

// Service renders item reports for reconciliation handoff.
type Service struct {
	items *settlement.Service
}

func NewService(items *settlement.Service) *Service {
	return &Service{items: items}
}

// Filter narrows the exported rows.
type Filter struct {
	State *settlement.ItemState
}

// WriteCSV writes matching items to w, newest first, and returns the number
// of data rows written.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, filter Filter) (int, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing items: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	rows := 0
	for _, it := range items {
		if filter.State != nil && it.State != *filter.State {
			continue
		}

		if err := cw.Write(itemRecord(it)); err != nil {
			return rows, fmt.Errorf("writing item %s: %w", it.ID, err)
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("flushing report: %w", err)
	}

	return rows, nil
}

func itemRecord(it *settlement.Item) []string {
	rec := []string{
		it.ID.String(),
		it.Amount.StringFixed(2),
		string(it.State),
		strconv.FormatBool(it.HasErrored),
		"",
		"",
		it.CreatedAt.UTC().Format(time.RFC3339),
	}

	if it.ActiveTransaction != nil {
		rec[4] = string(it.ActiveTransaction.Status)
		rec[5] = string(it.ActiveTransaction.Location)
	}

	return rec
}
