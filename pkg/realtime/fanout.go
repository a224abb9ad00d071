package realtime

import (
	"time"

	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/ports"
	"github.com/google/uuid"
)

// Fanout publishes to several publishers, stamping ID and Timestamp when missing.
type Fanout []ports.EventPublisher

// Publish forwards evt to every publisher.
func (f Fanout) Publish(evt domain.Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	for _, p := range f {
		if p != nil {
			p.Publish(evt)
		}
	}
}
