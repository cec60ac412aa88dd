package domain

import "errors"

// Visitor-facing errors: reported with a best-effort diagnostic, no mutation.
var (
	// ErrFunnelNotFound is returned when the funnel definition does not exist.
	ErrFunnelNotFound = errors.New("funnel not found")
	// ErrFunnelNotActive is returned when a visitor tries to enter a funnel that is not ACTIVE.
	ErrFunnelNotActive = errors.New("funnel not active")
	// ErrFunnelEmpty is returned when the funnel has no nodes.
	ErrFunnelEmpty = errors.New("funnel has no nodes")
	// ErrNodeNotFound is returned when a target node does not belong to the funnel.
	ErrNodeNotFound = errors.New("node not found in funnel")
)

// Stale-trigger errors: the caller drops the trigger silently.
var (
	// ErrSessionConflict is returned when a trigger lost the serialization race
	// or was observed at a node the session already left.
	ErrSessionConflict = errors.New("session conflict")
	// ErrNoActiveSession is returned when a non-start trigger finds no ACTIVE session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrPaymentPending is returned when a visitor tries to move past an unpaid PAYMENT node.
	ErrPaymentPending = errors.New("payment pending")
)

var (
	// ErrSessionNotFound is returned when a session ID cannot be found in the repository.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDeliveryFailed is returned when an outbound send failed. The session
	// mutation it followed is never rolled back.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// IsVisitorFacing reports whether err should be turned into a diagnostic message.
func IsVisitorFacing(err error) bool {
	return errors.Is(err, ErrFunnelNotFound) ||
		errors.Is(err, ErrFunnelNotActive) ||
		errors.Is(err, ErrFunnelEmpty) ||
		errors.Is(err, ErrNodeNotFound)
}

// IsStale reports whether err means the trigger should be dropped as a no-op.
func IsStale(err error) bool {
	return errors.Is(err, ErrSessionConflict) ||
		errors.Is(err, ErrNoActiveSession) ||
		errors.Is(err, ErrPaymentPending)
}

// Diagnostic returns the visitor-facing text for err, or "" if err is not visitor-facing.
func Diagnostic(err error) string {
	switch {
	case errors.Is(err, ErrFunnelNotFound), errors.Is(err, ErrFunnelNotActive):
		return DiagnosticFunnelUnavailable
	case errors.Is(err, ErrFunnelEmpty):
		return DiagnosticFunnelEmpty
	case errors.Is(err, ErrNodeNotFound):
		return DiagnosticNodeUnavailable
	}
	return ""
}
