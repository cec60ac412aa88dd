package domain

// Visitor-facing texts used when a node carries no content of its own.
const (
	DefaultMessageText   = "Empty message"
	DefaultButtonPrompt  = "Choose an action:"
	DefaultContinueLabel = "Continue"
	DefaultCurrency      = "RUB"

	// DefaultDelaySeconds is used when a DELAY node has no positive duration.
	DefaultDelaySeconds = 1
)

// Diagnostic texts sent to the visitor when a trigger cannot be honored.
const (
	DiagnosticInvalidLink       = "Welcome! This link is invalid."
	DiagnosticFunnelUnavailable = "Funnel not found or inactive."
	DiagnosticFunnelEmpty       = "This funnel has no steps yet."
	DiagnosticNodeUnavailable   = "This option is no longer available."
)
