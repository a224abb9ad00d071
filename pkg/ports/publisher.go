package ports

import "github.com/aretw0/dialtone/pkg/domain"

// EventPublisher delivers realtime events to monitoring consumers.
// Publish must not block the caller; delivery is best-effort.
type EventPublisher interface {
	Publish(event domain.Event)
}
