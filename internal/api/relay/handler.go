package relay

import (
	"encoding/json"
	"errors"
	"net/http"

	"ticketing-realtime/internal/api/middleware"
	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
)

const maxBodyBytes = 1 << 20

// Handler accepts mutation triggers over HTTP and republishes them on the event bus, so
// CRUD processes that cannot reach redis still drive realtime pushes.
type Handler struct {
	publisher domain.EventPublisher
	clock     clockwork.Clock
	log       logger.Logger
}

func NewHandler(publisher domain.EventPublisher, clock clockwork.Clock, log logger.Logger) *Handler {
	return &Handler{
		publisher: publisher,
		clock:     clock,
		log:       log,
	}
}

// Router wires POST /events/{type} behind CORS and the service key check.
func (h *Handler) Router(serviceKey string, allowedOrigins []string) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORSWithLogging(allowedOrigins, h.log))

	events := r.PathPrefix("/events").Subrouter()
	events.Use(middleware.RequireServiceKey(serviceKey, h.log))
	events.HandleFunc("/{type}", h.PublishEvent).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "event-relay"})
	}).Methods(http.MethodGet)

	return r
}

// PublishEvent decodes the body as a MutationEvent whose type comes from the path.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.MutationEvent
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&event); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
	}
	event.Type = domain.MutationType(mux.Vars(r)["type"])
	if event.OccurredAt.IsZero() {
		event.OccurredAt = h.clock.Now().UTC()
	}

	if err := h.publisher.PublishMutation(r.Context(), &event); err != nil {
		if errors.Is(err, domain.ErrUnknownMutation) || errors.Is(err, domain.ErrInvalidMutation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.log.Error("Failed to publish mutation", "type", event.Type, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event bus unavailable"})
		return
	}

	h.log.Info("Relayed mutation", "type", event.Type, "event_id", event.EventID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
