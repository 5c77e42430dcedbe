package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cleargate/payline/internal/export"
	"github.com/cleargate/payline/internal/settlement"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.download)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	filter := export.Filter{}

	if s := r.URL.Query().Get("state"); s != "" {
		filter.State = new(settlement.ItemState(s))
	}

	var buf bytes.Buffer

	if _, err := h.svc.WriteCSV(r.Context(), &buf, filter); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"settlement_items_%s.csv\"", time.Now().Format("20060102")))

	if _, err := io.Copy(w, &buf); err != nil {
		slog.Error("failed to write export", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
