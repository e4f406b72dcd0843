// Package server exposes CitySense sessions over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lizzyg/citysense"
	moderr "github.com/lizzyg/citysense/errors"
	"github.com/lizzyg/citysense/internal/core"
	"github.com/lizzyg/citysense/internal/geo"
	"github.com/lizzyg/citysense/internal/logger"
	"github.com/lizzyg/citysense/internal/metrics"
)

// Config carries the router's dependencies.
type Config struct {
	Store          *citysense.SessionStore
	Tools          []citysense.ToolDefinition
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type handler struct {
	store  *citysense.SessionStore
	tools  []citysense.ToolDefinition
	logger *slog.Logger
}

// NewRouter builds the HTTP surface.
func NewRouter(cfg Config) chi.Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handler{store: cfg.Store, tools: cfg.Tools, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tools", h.listTools)
		r.Post("/sessions", h.createSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Post("/messages", h.sendMessage)
		})
	})
	return r
}

type sessionResponse struct {
	ID         string               `json:"id"`
	State      string               `json:"state"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
	Welcome    string               `json:"welcome,omitempty"`
	Transcript citysense.Transcript `json:"transcript"`
}

func newSessionResponse(s *citysense.Session) sessionResponse {
	tr := s.Transcript()
	if tr == nil {
		tr = citysense.Transcript{}
	}
	return sessionResponse{
		ID:         s.ID,
		State:      s.State().String(),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt(),
		Transcript: tr,
	}
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Turns     int    `json:"turns"`
}

func (h *handler) listTools(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, r, http.StatusOK, h.tools)
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Create()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := newSessionResponse(s)
	resp.Welcome = citysense.WelcomeMessage
	WriteJSONResponse(w, r, http.StatusCreated, resp)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSONResponse(w, r, http.StatusOK, newSessionResponse(s))
}

func (h *handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "sessionID")); err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req messageRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx := geo.WithCallerIP(r.Context(), r.RemoteAddr)
	reply, err := s.Send(ctx, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSONResponse(w, r, http.StatusOK, messageResponse{
		SessionID: s.ID,
		Reply:     reply,
		Turns:     len(s.Transcript()),
	})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("req_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err))
	}
	ErrorResponse(w, r, status, err.Error())
}

func statusFor(err error) int {
	var upstream *core.HTTPStatusError
	switch {
	case errors.Is(err, moderr.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, moderr.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, moderr.ErrConfig):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream), errors.Is(err, moderr.ErrMaxToolTurns):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
