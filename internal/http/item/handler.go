package item

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cleargate/payline/internal/settlement"
)

type Handler struct {
	svc *settlement.Service
}

func NewHandler(svc *settlement.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/transactions", h.createTransaction)
	r.Put("/{id}/move", h.move)
	r.Put("/{id}/error", h.markError)
	r.Put("/{id}/fix", h.fix)
	r.Put("/{id}/refund", h.refund)
}

type createItemRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Amount.Exponent() < -2 {
		writeError(w, http.StatusBadRequest, "amount precision is limited to 2 decimal places")
		return
	}

	it, err := h.svc.CreateItem(r.Context(), settlement.CreateItemParams{Amount: req.Amount})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toResponse(it)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponseList(items)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	it, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(it)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type createTransactionRequest struct {
	Status   settlement.Status   `json:"status"`
	Location settlement.Location `json:"location"`
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	// The body is optional. Without one the transaction opens in the
	// default processing/originator_bank start state.
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.svc.CreateTransaction(r.Context(), id, settlement.CreateTransactionParams{
		Status:   req.Status,
		Location: req.Location,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	it, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeAction(w, fmt.Sprintf("Transaction %s created", tx.ID), it)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	it, err := h.svc.Move(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := fmt.Sprintf("Item moved to %s/%s", it.ActiveTransaction.Status, it.ActiveTransaction.Location)
	writeAction(w, status, it)
}

func (h *Handler) markError(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	it, err := h.svc.MarkError(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeAction(w, "Item errored", it)
}

func (h *Handler) fix(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if _, err := h.svc.Fix(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	it, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeAction(w, "Item fixed", it)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if _, err := h.svc.BeginRefund(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	it, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeAction(w, "Item refund started", it)
}

func writeAction(w http.ResponseWriter, status string, it *settlement.Item) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(actionResponse{Status: status, Item: toResponse(it)}); err != nil {
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

func writeDomainError(w http.ResponseWriter, err error) {
	var (
		stateErr      *settlement.InvalidStateError
		transitionErr *settlement.InvalidTransitionError
	)

	switch {
	case errors.Is(err, settlement.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, settlement.ErrNoActiveTransaction),
		errors.As(err, &stateErr),
		errors.As(err, &transitionErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
