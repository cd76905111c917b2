package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewPIIMiddleware([]string{"password", "^phone"})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	session := domain.NewSession("pii-session", "support")
	session.Memory["username"] = "jdoe"
	session.Memory["user_password"] = "secret123"
	session.Memory["phone_number"] = "555-0100"
	session.Memory["cellphone"] = "kept"

	if err := secureStore.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if session.Memory["user_password"] != "secret123" {
		t.Error("Middleware modified the caller's session in memory!")
	}

	stored, err := underlyingStore.Load(ctx, "pii-session")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Memory["username"] != "jdoe" {
		t.Error("Username shouldn't be masked")
	}
	if stored.Memory["user_password"] != middleware.Mask {
		t.Errorf("Password should be masked, got: %v", stored.Memory["user_password"])
	}
	if stored.Memory["phone_number"] != middleware.Mask {
		t.Errorf("Phone should be masked, got: %v", stored.Memory["phone_number"])
	}
	if stored.Memory["cellphone"] != "kept" {
		t.Errorf("Anchored pattern should not match cellphone, got: %v", stored.Memory["cellphone"])
	}
}

func TestChain_Order(t *testing.T) {
	underlyingStore := memory.NewStore()
	key := make([]byte, 32)
	store := middleware.Chain(underlyingStore,
		middleware.NewPIIMiddleware([]string{"email"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	session := domain.NewSession("s", "support")
	session.Memory["email"] = "a@b.c"
	if err := store.Save(ctx, session); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Memory["email"] != middleware.Mask {
		t.Errorf("PII should be masked before encryption, got %q", loaded.Memory["email"])
	}
}
