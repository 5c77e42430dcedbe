package intake

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cleargate/payline/internal/intake"
	"github.com/cleargate/payline/internal/settlement"
)

type Handler struct {
	parser *intake.Parser
	items  *settlement.Service
}

func NewHandler(parser *intake.Parser, items *settlement.Service) *Handler {
	return &Handler{
		parser: parser,
		items:  items,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importBatch)
}

type itemResponse struct {
	ID        uuid.UUID            `json:"id"`
	Amount    string               `json:"amount"`
	State     settlement.ItemState `json:"state"`
	CreatedAt time.Time            `json:"created_at"`
}

type importSuccessResponse struct {
	Imported int            `json:"imported"`
	Items    []itemResponse `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) importBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	params, err := h.parser.Parse(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.items.CreateItems(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toSuccessResponse(items)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func toSuccessResponse(items []*settlement.Item) importSuccessResponse {
	responses := make([]itemResponse, 0, len(items))
	for _, it := range items {
		responses = append(responses, itemResponse{
			ID:        it.ID,
			Amount:    it.Amount.StringFixed(2),
			State:     it.State,
			CreatedAt: it.CreatedAt,
		})
	}

	return importSuccessResponse{
		Imported: len(items),
		Items:    responses,
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
