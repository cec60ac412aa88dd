// Package middleware decorates a ports.SessionRepository with cross-cutting
// behavior such as logging and metrics.
package middleware

import (
	"errors"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/ports"
)

// Middleware allows wrapping a SessionRepository to add behavior.
type Middleware func(ports.SessionRepository) ports.SessionRepository

// Chain wraps repo so that the first middleware is the outermost.
func Chain(repo ports.SessionRepository, mws ...Middleware) ports.SessionRepository {
	for i := len(mws) - 1; i >= 0; i-- {
		repo = mws[i](repo)
	}
	return repo
}

// outcome classifies an error for logs and metric labels.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrSessionConflict):
		return "conflict"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "not_found"
	default:
		return "error"
	}
}
