package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/internal/runtime"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/payments"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Engine is the part of the funnel engine the HTTP channel drives.
type Engine interface {
	Advance(ctx context.Context, visitorID, funnelID string, trigger domain.Trigger) (*runtime.Result, error)
	ResumeAfterPayment(ctx context.Context, sessionID string, confirmation domain.PaymentConfirmation) (*runtime.Result, error)
	Abandon(ctx context.Context, sessionID string) (*domain.VisitorSession, error)
	Get(ctx context.Context, sessionID string) (*domain.VisitorSession, error)
	Link(ctx context.Context, funnelID string) (string, error)
}

// DemoConfirmer confirms orders opened by the demo payment initiator.
type DemoConfirmer interface {
	Confirm(orderID string) (payments.Event, error)
}

// Server serves the funnel HTTP API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	metrics http.Handler
	demo    DemoConfirmer
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithStreams shares the stream manager that also acts as the engine's deliverer.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithDemoPayments enables POST /v1/payments/demo/{orderID}/confirm.
func WithDemoPayments(d DemoConfirmer) Option {
	return func(s *Server) { s.demo = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager(WithStreamLogger(server.logger))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", server.GetHealth)
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/funnels/{funnelID}/visitors/{visitorID}/events", server.PostEvent)
		r.Get("/funnels/{funnelID}/visitors/{visitorID}/stream", server.SubscribeEvents)
		r.Get("/funnels/{funnelID}/link", server.GetLink)
		r.Get("/sessions/{sessionID}", server.GetSession)
		r.Post("/sessions/{sessionID}/abandon", server.AbandonSession)
		r.Post("/payments/webhook", server.PaymentWebhook)
		if server.demo != nil {
			r.Post("/payments/demo/{orderID}/confirm", server.ConfirmDemoPayment)
		}
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EventRequest is the body of POST .../events.
type EventRequest struct {
	Kind   domain.TriggerKind `json:"kind"`
	NodeID string             `json:"node_id,omitempty"`
	Text   string             `json:"text,omitempty"`
	// Observed is the node the visitor answered. When omitted the engine
	// uses the session's node at the time the request arrives.
	Observed string `json:"observed,omitempty"`
}

func (e EventRequest) trigger() (domain.Trigger, error) {
	var t domain.Trigger
	switch e.Kind {
	case domain.TriggerStart:
		t = domain.Start()
	case domain.TriggerExplicitTarget:
		if e.NodeID == "" {
			return t, fmt.Errorf("node_id is required for %q", e.Kind)
		}
		t = domain.ExplicitTarget(e.NodeID)
	case domain.TriggerContinue:
		t = domain.Continue()
	case domain.TriggerFreeText:
		t = domain.FreeText(e.Text)
	default:
		return t, fmt.Errorf("unknown trigger kind %q", e.Kind)
	}
	return t.At(e.Observed), nil
}

// ResultResponse is returned by the mutating endpoints.
type ResultResponse struct {
	Session  *domain.VisitorSession `json:"session,omitempty"`
	Outcomes []domain.Outcome       `json:"outcomes"`
	Delivery string                 `json:"delivery_error,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error      string `json:"error"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// PostEvent handles POST /v1/funnels/{funnelID}/visitors/{visitorID}/events.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	funnelID := chi.URLParam(r, "funnelID")
	visitorID := chi.URLParam(r, "visitorID")

	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	trigger, err := body.trigger()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.Engine.Advance(r.Context(), visitorID, funnelID, trigger)
	if err != nil {
		s.writeEngineError(w, err, "visitor_id", visitorID, "funnel_id", funnelID)
		return
	}
	s.writeResult(w, res)
}

// GetSession handles GET /v1/sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// AbandonSession handles POST /v1/sessions/{sessionID}/abandon.
func (s *Server) AbandonSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.Abandon(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// GetLink handles GET /v1/funnels/{funnelID}/link.
func (s *Server) GetLink(w http.ResponseWriter, r *http.Request) {
	funnelID := chi.URLParam(r, "funnelID")
	link, err := s.Engine.Link(r.Context(), funnelID)
	if err != nil {
		s.writeEngineError(w, err, "funnel_id", funnelID)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"funnel_id": funnelID, "link": link})
}

// PaymentWebhook handles POST /v1/payments/webhook. Only payment.succeeded
// moves the funnel; every other event is acknowledged and ignored.
func (s *Server) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	event, err := payments.ParseEvent(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.applyPayment(w, r.Context(), event)
}

// ConfirmDemoPayment handles POST /v1/payments/demo/{orderID}/confirm.
func (s *Server) ConfirmDemoPayment(w http.ResponseWriter, r *http.Request) {
	event, err := s.demo.Confirm(chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.applyPayment(w, r.Context(), event)
}

func (s *Server) applyPayment(w http.ResponseWriter, ctx context.Context, event payments.Event) {
	confirmation, ok, err := event.Confirmation()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	sessionID := event.SessionID()
	if !ok || sessionID == "" {
		s.logger.Info("Payment event ignored", "event", event.Status(), "payment_id", event.Object.ID)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	res, err := s.Engine.ResumeAfterPayment(ctx, sessionID, confirmation)
	if err != nil {
		if domain.IsStale(err) {
			// Providers retry on non-2xx; a duplicate notification is not an error.
			s.logger.Info("Duplicate payment notification", "session_id", sessionID, "payment_id", confirmation.ID)
			s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		s.writeEngineError(w, err, "session_id", sessionID)
		return
	}
	s.writeResult(w, res)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeResult(w http.ResponseWriter, res *runtime.Result) {
	resp := ResultResponse{Session: res.Session, Outcomes: res.Outcomes}
	if resp.Outcomes == nil {
		resp.Outcomes = []domain.Outcome{}
	}
	if res.DeliveryErr != nil {
		resp.Delivery = res.DeliveryErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error, attrs ...any) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Engine call failed", append(attrs, "err", err)...)
	} else {
		s.logger.Debug("Engine call rejected", append(attrs, "err", err)...)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Diagnostic: domain.Diagnostic(err)})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("Request rejected", "status", status, "err", err)
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrFunnelNotFound),
		errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFunnelNotActive), errors.Is(err, domain.ErrFunnelEmpty):
		return http.StatusUnprocessableEntity
	case domain.IsStale(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
