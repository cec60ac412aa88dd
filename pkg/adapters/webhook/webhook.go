// Package webhook delivers outbound funnel actions to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/funnel/pkg/domain"
)

const (
	postTimeout       = 10 * time.Second
	maxErrorBodyBytes = 1 << 20
	headerContentType = "Content-Type"
	headerVisitorID   = "X-Funnel-Visitor"
	contentTypeJSON   = "application/json"
)

// Payload is the JSON body posted for every delivery.
type Payload struct {
	VisitorID string          `json:"visitor_id"`
	FunnelID  string          `json:"funnel_id"`
	SentAt    time.Time       `json:"sent_at"`
	Actions   []domain.Action `json:"actions"`
}

// Deliverer posts actions to a URL.
type Deliverer struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// Option configures a Deliverer.
type Option func(*Deliverer)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Deliverer) { d.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(d *Deliverer) { d.now = now }
}

func New(url string, opts ...Option) *Deliverer {
	d := &Deliverer{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: postTimeout},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver implements ports.Deliverer. Any non-2xx answer is a failure.
func (d *Deliverer) Deliver(ctx context.Context, visitorID, funnelID string, actions []domain.Action) error {
	body, err := json.Marshal(Payload{
		VisitorID: visitorID,
		FunnelID:  funnelID,
		SentAt:    d.now(),
		Actions:   actions,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerVisitorID, visitorID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if readErr != nil {
			return fmt.Errorf("webhook returned %s", resp.Status)
		}
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("webhook returned %s: %s", resp.Status, msg)
	}
	return nil
}
