// Package transaction exposes the read-only transaction ledger. Transactions
// are only ever created and advanced through item lifecycle actions.
package transaction

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cleargate/payline/internal/settlement"
)

type Handler struct {
	svc *settlement.Service
}

func NewHandler(svc *settlement.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := settlement.ListFilter{}

	if s := r.URL.Query().Get("item_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.ItemID = new(id)
		}
	}

	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = new(settlement.Status(s))
	}

	if s := r.URL.Query().Get("active"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			filter.Active = new(b)
		}
	}

	txs, err := h.svc.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponseList(txs)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	tx, err := h.svc.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, settlement.ErrTransactionNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(tx)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
