package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"whatado/event-service/internal/handler"
	"whatado/event-service/pkg/auth"
	"whatado/event-service/pkg/logger"
)

// Config wires the HTTP gateway. A nil Validator serves the API without
// authentication and a nil Throttle disables rate limiting.
type Config struct {
	Client      *handler.EventClient
	Validator   auth.TokenValidator
	Throttle    *Throttle
	Logger      *logger.Logger
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	// Ready reports whether the backing store is reachable
	Ready func(ctx context.Context) error
}

// NewRouter builds the HTTP surface over the EventService client
func NewRouter(cfg Config) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthz(cfg.Ready)).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	if cfg.Validator != nil {
		api.Use(AuthMiddleware(cfg.Validator))
	}
	if cfg.Throttle != nil {
		api.Use(cfg.Throttle.Middleware)
	}

	h := &eventRoutes{client: cfg.Client}
	api.HandleFunc("/feed/primary", h.primaryFeed).Methods(http.MethodGet)
	api.HandleFunc("/feed/other", h.otherFeed).Methods(http.MethodGet)
	api.HandleFunc("/feed/suggested", h.suggestedFeed).Methods(http.MethodGet)

	api.HandleFunc("/events", h.createEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/mine", h.myEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/flagged", h.flaggedEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{id:[0-9]+}", h.getEvent).Methods(http.MethodGet)
	api.HandleFunc("/events/{id:[0-9]+}", h.updateEvent).Methods(http.MethodPatch)
	api.HandleFunc("/events/{id:[0-9]+}", h.deleteEvent).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id:[0-9]+}/flag", h.flagEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/{id:[0-9]+}/invites", h.invite).Methods(http.MethodPost)
	api.HandleFunc("/events/{id:[0-9]+}/invites/{userId:[0-9]+}", h.uninvite).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id:[0-9]+}/wannago", h.addWannago).Methods(http.MethodPost)

	api.HandleFunc("/wannagos/{id:[0-9]+}", h.updateWannago).Methods(http.MethodPatch)
	api.HandleFunc("/wannagos/{id:[0-9]+}", h.deleteWannago).Methods(http.MethodDelete)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
	})

	var root http.Handler = r
	if cfg.Logger != nil {
		root = LoggingMiddleware(cfg.Logger)(root)
	}
	return c.Handler(root)
}

func healthz(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
