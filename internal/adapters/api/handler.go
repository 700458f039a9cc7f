// Package api serves the district read API. Every endpoint is gated by the
// district code passed as the "code" query parameter.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voltschool/internal/remote"
	"voltschool/pkg/domain"
)

const (
	apiName    = "Voltschool API"
	apiVersion = "1.0.0"

	unauthorizedMessage = `Unauthorized access. Please provide a valid district code using the "code" parameter.`
	credentialsMessage  = "remote credentials not available"
)

// Logger is the structured logger used by the handler. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Connector opens a remote connection for a single request. The handler
// closes it when the request completes.
type Connector func(ctx context.Context) (*remote.Adapter, error)

// EventSource streams domain events to subscribers.
type EventSource interface {
	Subscribe(fn func(domain.Event)) (unsubscribe func())
}

// Handler serves /api, /api/{students,buses,incidents}, /api/events,
// /metrics and /debug/vars.
type Handler struct {
	code     string
	connect  Connector
	events   EventSource
	metrics  http.Handler
	vars     http.Handler
	logger   Logger
	upgrader websocket.Upgrader
}

// Option customises a Handler.
type Option func(*Handler)

// WithEvents enables the /api/events websocket stream.
func WithEvents(src EventSource) Option {
	return func(h *Handler) { h.events = src }
}

// WithMetrics serves the gatherer's metrics on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		if g != nil {
			h.metrics = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
		}
	}
}

// WithDebugVars serves expvar variables on /debug/vars.
func WithDebugVars() Option {
	return func(h *Handler) { h.vars = expvar.Handler() }
}

// WithLogger sets the handler logger.
func WithLogger(l Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler constructs the API handler for the given district code.
func NewHandler(code string, connect Connector, opts ...Option) *Handler {
	h := &Handler{code: code, connect: connect, logger: noopLogger{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch path {
	case "/metrics":
		if h.metrics == nil {
			http.NotFound(w, r)
			return
		}
		h.metrics.ServeHTTP(w, r)
		return
	case "/debug/vars":
		if h.vars == nil {
			http.NotFound(w, r)
			return
		}
		h.vars.ServeHTTP(w, r)
		return
	case "/api", "/api/students", "/api/buses", "/api/incidents", "/api/events":
	default:
		http.NotFound(w, r)
		return
	}

	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}
	switch path {
	case "/api":
		writeJSON(w, http.StatusOK, h.directory(r))
	case "/api/events":
		h.handleEvents(w, r)
	default:
		h.handleCollection(w, r, domain.CollectionName(strings.TrimPrefix(path, "/api/")))
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	code := r.URL.Query().Get("code")
	return code != "" && code == h.code
}

// Directory lists the collection endpoints.
type Directory struct {
	Message   string    `json:"message"`
	Version   string    `json:"version"`
	Endpoints Endpoints `json:"endpoints"`
	Note      string    `json:"note"`
}

// Endpoints holds absolute, pre-authorised collection URLs.
type Endpoints struct {
	Students  string `json:"students"`
	Buses     string `json:"buses"`
	Incidents string `json:"incidents"`
}

func (h *Handler) directory(r *http.Request) Directory {
	base := origin(r)
	auth := "?code=" + h.code
	return Directory{
		Message: apiName,
		Version: apiVersion,
		Endpoints: Endpoints{
			Students:  base + "/api/students" + auth,
			Buses:     base + "/api/buses" + auth,
			Incidents: base + "/api/incidents" + auth,
		},
		Note: `All API requests require the district code parameter, e.g., "` + auth + `"`,
	}
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// handleCollection returns the stored row verbatim. Any read failure,
// including a missing row, is a 500 carrying the error message.
func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request, collection domain.CollectionName) {
	if h.connect == nil {
		writeError(w, http.StatusInternalServerError, credentialsMessage)
		return
	}
	adapter, err := h.connect(r.Context())
	if err != nil {
		h.logger.Error("connect remote", "collection", collection, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() {
		if cerr := adapter.Close(); cerr != nil {
			h.logger.Warn("close remote", "error", cerr)
		}
	}()

	raw, err := adapter.FetchRaw(r.Context(), collection)
	switch {
	case errors.Is(err, remote.ErrUnavailable):
		writeError(w, http.StatusInternalServerError, credentialsMessage)
		return
	case err != nil:
		h.logger.Error("fetch collection", "collection", collection, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
