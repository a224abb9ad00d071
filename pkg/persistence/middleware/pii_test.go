package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/dialtone/pkg/adapters/memory"
	"github.com/aretw0/dialtone/pkg/persistence/middleware"
)

func TestPIIMiddleware_MasksEndedCalls(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewPIIMiddleware([]string{"pin", "^card"})(underlyingStore)
	ctx := context.Background()

	s := newSession("CA1")
	s.Variables["card_number"] = "4111111111111111"
	s.Variables["account_pin"] = "1234"
	s.Variables["reason"] = "billing"

	// A live call keeps everything: a later decision may still read it.
	if err := secureStore.Save(ctx, "CA1", s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	stored, _ := underlyingStore.Load(ctx, "CA1")
	if stored.Variables["card_number"] != "4111111111111111" {
		t.Errorf("Live call was masked: %v", stored.Variables)
	}

	s.Terminal = true
	if err := secureStore.Save(ctx, "CA1", s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if s.Variables["account_pin"] != "1234" {
		t.Error("Middleware modified the caller's session")
	}

	stored, _ = underlyingStore.Load(ctx, "CA1")
	if stored.Variables["card_number"] != middleware.Mask {
		t.Errorf("card_number = %q, want masked", stored.Variables["card_number"])
	}
	if stored.Variables["account_pin"] != middleware.Mask {
		t.Errorf("account_pin = %q, want masked", stored.Variables["account_pin"])
	}
	if stored.Variables["reason"] != "billing" {
		t.Errorf("reason = %q, should not be masked", stored.Variables["reason"])
	}
}

func TestChain_EncryptsMaskedSession(t *testing.T) {
	underlyingStore := memory.NewStore()
	store := middleware.Chain(underlyingStore,
		middleware.NewPIIMiddleware([]string{"pin"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)
	ctx := context.Background()

	s := newSession("CA9")
	s.Variables["pin"] = "9999"
	s.Terminal = true
	if err := store.Save(ctx, "CA9", s); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, "CA9")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Variables["pin"] != middleware.Mask {
		t.Errorf("pin = %q, want masked", loaded.Variables["pin"])
	}
	raw, _ := underlyingStore.Load(ctx, "CA9")
	if _, ok := raw.Variables["pin"]; ok {
		t.Error("Encrypted envelope exposes variables")
	}
}
