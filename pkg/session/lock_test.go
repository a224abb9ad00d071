package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/dialtone/pkg/adapters/memory"
	"github.com/aretw0/dialtone/pkg/domain"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("CA%d", i)
		_, _, _ = mgr.GetOrCreate(ctx, id, func() (*domain.Session, error) {
			return &domain.Session{}, nil
		})
		_ = mgr.Terminate(ctx, id)
	}

	if n := mgr.activeLocks(); n != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Terminate", n)
	}
}
