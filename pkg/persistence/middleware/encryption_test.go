package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/aretw0/dialtone/pkg/adapters/memory"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/persistence/middleware"
	"github.com/aretw0/dialtone/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func newSession(callID string) *domain.Session {
	return &domain.Session{
		CallID:        callID,
		FlowID:        "support",
		FlowVersion:   2,
		CurrentNodeID: "collect_account",
		Variables:     map[string]string{},
		From:          "+15550101234",
		LastActivity:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	original := newSession("CA1")
	original.Variables["account"] = "4111-1111"
	original.History = []string{"start", "collect_account"}

	if err := secureStore.Save(ctx, "CA1", original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stored, err := underlyingStore.Load(ctx, "CA1")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if val, ok := stored.Variables["account"]; ok {
		t.Fatalf("Expected account to be hidden, found: %v", val)
	}
	if _, ok := stored.Variables["__encrypted__"]; !ok {
		t.Fatal("Expected __encrypted__ variable in envelope")
	}
	if stored.From != "" || stored.History != nil {
		t.Errorf("Envelope leaks caller data: %+v", stored)
	}
	if stored.FlowID != "support" || !stored.LastActivity.Equal(original.LastActivity) {
		t.Errorf("Envelope lost routing fields: %+v", stored)
	}

	loaded, err := secureStore.Load(ctx, "CA1")
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if loaded.Variables["account"] != "4111-1111" || loaded.From != "+15550101234" {
		t.Errorf("Unexpected decrypted session: %+v", loaded)
	}
	if len(loaded.History) != 2 {
		t.Errorf("History = %v, want 2 entries", loaded.History)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	s := newSession("CA2")
	s.Variables["data"] = "encrypted-with-old-key"
	if err := secureStoreOld.Save(ctx, "CA2", s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "CA2")
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}
	if loaded.Variables["data"] != "encrypted-with-old-key" {
		t.Errorf("Decryption with fallback key failed")
	}

	loaded.Variables["data"] = "encrypted-with-new-key"
	if err := secureStoreNew.Save(ctx, "CA2", loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	if _, err := secureStoreOld.Load(ctx, "CA2"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_RejectsPlainSession(t *testing.T) {
	underlyingStore := memory.NewStore()
	ctx := context.Background()
	if err := underlyingStore.Save(ctx, "CA3", newSession("CA3")); err != nil {
		t.Fatal(err)
	}

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	if _, err := secureStore.Load(ctx, "CA3"); err == nil {
		t.Error("Expected plain session to be rejected")
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := middleware.Chain(memory.NewStore(),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
	ports.RunSessionStoreContract(t, store)
}
