package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/funnel/internal/logging"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// StreamManager handles active SSE connections. It is also the engine's
// deliverer for the HTTP channel: outbound actions are pushed to every
// subscriber of the (visitor, funnel) pair.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionKey -> Set of Channels
	logger      *slog.Logger
}

// StreamOption configures a StreamManager.
type StreamOption func(*StreamManager)

// WithStreamLogger sets the logger.
func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(sm *StreamManager) { sm.logger = logger }
}

func NewStreamManager(opts ...StreamOption) *StreamManager {
	sm := &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

func (sm *StreamManager) Subscribe(key string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[key]; !ok {
		sm.subscribers[key] = make(map[chan<- string]struct{})
	}
	sm.subscribers[key][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[key]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, key)
			}
		}
	}
}

// Broadcast returns the number of subscribers that received msg.
func (sm *StreamManager) Broadcast(key string, msg string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sent := 0
	for ch := range sm.subscribers[key] {
		select {
		case ch <- msg:
			sent++
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "key", key)
		}
	}
	return sent
}

// Deliver implements ports.Deliverer. Nobody listening is not a failure:
// the visitor may poll the session instead.
func (sm *StreamManager) Deliver(_ context.Context, visitorID, funnelID string, actions []domain.Action) error {
	payload, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	key := domain.SessionKey(visitorID, funnelID)
	n := sm.Broadcast(key, string(payload))
	sm.logger.Debug("SSE: Delivered actions", "visitor_id", visitorID, "funnel_id", funnelID, "subscribers", n)
	return nil
}

// SubscribeEvents handles GET /v1/funnels/{funnelID}/visitors/{visitorID}/stream (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	key := domain.SessionKey(chi.URLParam(r, "visitorID"), chi.URLParam(r, "funnelID"))
	ch, cancel := s.Streams.Subscribe(key)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: actions\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
