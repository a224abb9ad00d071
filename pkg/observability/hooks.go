package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/dialtone/pkg/domain"
)

// LoggingHooks logs every lifecycle transition at debug level, failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCallStart: func(_ context.Context, s *domain.Session) {
			logger.Info("call_start", "call_id", s.CallID, "flow_id", s.FlowID, "from", s.From, "to", s.To)
		},
		OnNodeEnter: func(_ context.Context, s *domain.Session, n domain.Node) {
			logger.Debug("node_enter", "call_id", s.CallID, "node_id", n.NodeID(), "kind", n.Kind())
		},
		OnCallEnd: func(_ context.Context, s *domain.Session, reason string) {
			logger.Info("call_end", "call_id", s.CallID, "flow_id", s.FlowID, "reason", reason)
		},
		OnStepFailed: func(_ context.Context, s *domain.Session, err error) {
			logger.Warn("step_failed", "call_id", s.CallID, "node_id", s.CurrentNodeID, "err", err)
		},
	}
}

// Combine returns hooks that call each of the given sets in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		h := h
		if h.OnCallStart != nil {
			prev := out.OnCallStart
			out.OnCallStart = func(ctx context.Context, s *domain.Session) {
				if prev != nil {
					prev(ctx, s)
				}
				h.OnCallStart(ctx, s)
			}
		}
		if h.OnNodeEnter != nil {
			prev := out.OnNodeEnter
			out.OnNodeEnter = func(ctx context.Context, s *domain.Session, n domain.Node) {
				if prev != nil {
					prev(ctx, s, n)
				}
				h.OnNodeEnter(ctx, s, n)
			}
		}
		if h.OnCallEnd != nil {
			prev := out.OnCallEnd
			out.OnCallEnd = func(ctx context.Context, s *domain.Session, reason string) {
				if prev != nil {
					prev(ctx, s, reason)
				}
				h.OnCallEnd(ctx, s, reason)
			}
		}
		if h.OnStepFailed != nil {
			prev := out.OnStepFailed
			out.OnStepFailed = func(ctx context.Context, s *domain.Session, err error) {
				if prev != nil {
					prev(ctx, s, err)
				}
				h.OnStepFailed(ctx, s, err)
			}
		}
	}
	return out
}
