package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/consultly/realtime/internal/bus"
	"github.com/consultly/realtime/internal/models"
	"github.com/consultly/realtime/internal/store"
)

// Enqueuer hands events to the durable mirror. Satisfied by *mirror.Mirror.
type Enqueuer interface {
	Enqueue(ev *models.Event)
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	fast    store.FastStore
	durable store.DurableStore
	bus     bus.Bus
	mirror  Enqueuer
	logger  zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(fast store.FastStore, durable store.DurableStore, b bus.Bus, mirror Enqueuer, logger zerolog.Logger) *Handler {
	return &Handler{fast: fast, durable: durable, bus: b, mirror: mirror, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// storeError maps a fast-path failure onto the response. ErrUnavailable is a
// 500 because the event was not stored and not delivered.
func (h *Handler) storeError(w http.ResponseWriter, err error, context string) {
	h.logger.Error().Err(err).Msg(context)
	h.Error(w, http.StatusInternalServerError, context)
}

// publish sends an event on the bus. A broker failure after the store append
// means live delivery did not happen, so it is surfaced like a store failure.
func (h *Handler) publish(w http.ResponseWriter, r *http.Request, topic string, ev *models.Event) bool {
	if err := h.bus.Publish(r.Context(), topic, ev); err != nil {
		h.storeError(w, err, "event broker unavailable")
		return false
	}
	return true
}
