package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/funnel/pkg/domain"
)

// Combine fans every event out to all hook sets, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks

	out.OnNodeEnter = func(ctx context.Context, e *domain.NodeEvent) {
		for _, h := range sets {
			if h.OnNodeEnter != nil {
				h.OnNodeEnter(ctx, e)
			}
		}
	}
	out.OnSessionEnd = combineSession(sets, func(h domain.LifecycleHooks) func(context.Context, *domain.SessionEvent) { return h.OnSessionEnd })
	out.OnConflict = combineSession(sets, func(h domain.LifecycleHooks) func(context.Context, *domain.SessionEvent) { return h.OnConflict })
	out.OnDeliveryFailed = combineSession(sets, func(h domain.LifecycleHooks) func(context.Context, *domain.SessionEvent) { return h.OnDeliveryFailed })
	out.OnTimerFired = combineSession(sets, func(h domain.LifecycleHooks) func(context.Context, *domain.SessionEvent) { return h.OnTimerFired })
	return out
}

func combineSession(sets []domain.LifecycleHooks, pick func(domain.LifecycleHooks) func(context.Context, *domain.SessionEvent)) func(context.Context, *domain.SessionEvent) {
	return func(ctx context.Context, e *domain.SessionEvent) {
		for _, h := range sets {
			if fn := pick(h); fn != nil {
				fn(ctx, e)
			}
		}
	}
}

// LogHooks writes one structured line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	session := func(msg string, level slog.Level) func(context.Context, *domain.SessionEvent) {
		return func(ctx context.Context, e *domain.SessionEvent) {
			attrs := []any{"session_id", e.SessionID, "funnel_id", e.FunnelID}
			if e.Status != "" {
				attrs = append(attrs, "status", e.Status)
			}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			logger.Log(ctx, level, msg, attrs...)
		}
	}

	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.InfoContext(ctx, "node_enter",
				"session_id", e.SessionID,
				"funnel_id", e.FunnelID,
				"node_id", e.NodeID,
				"node_type", e.NodeType,
				"trigger", e.Trigger,
			)
		},
		OnSessionEnd:     session("session_end", slog.LevelInfo),
		OnConflict:       session("conflict", slog.LevelDebug),
		OnDeliveryFailed: session("delivery_failed", slog.LevelWarn),
		OnTimerFired:     session("timer_fired", slog.LevelDebug),
	}
}
