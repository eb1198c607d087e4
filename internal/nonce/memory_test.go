package nonce

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_PutConsumeOnce(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	if err := ms.Put(ctx, "n1", time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if !ms.Exists(ctx, "n1") {
		t.Fatal("expected nonce to exist")
	}

	ok, err := ms.Consume(ctx, "n1")
	if err != nil || !ok {
		t.Fatalf("first Consume failed: ok=%v err=%v", ok, err)
	}

	// Single use: the second consume must fail
	ok, err = ms.Consume(ctx, "n1")
	if ok {
		t.Fatal("expected second Consume to fail")
	}
	var missing *NonceMissingError
	if err == nil {
		t.Fatal("expected NonceMissingError")
	} else if e, isMissing := err.(*NonceMissingError); isMissing {
		missing = e
	}
	if missing == nil || missing.Nonce != "n1" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	if err := ms.Put(ctx, "n1", time.Millisecond); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if ms.Exists(ctx, "n1") {
		t.Fatal("expected expired nonce to not exist")
	}
	if ok, _ := ms.Consume(ctx, "n1"); ok {
		t.Fatal("expected Consume of expired nonce to fail")
	}
}

func TestMemoryStore_RejectsZeroTTL(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()

	if err := ms.Put(context.Background(), "n1", 0); err == nil {
		t.Fatal("expected error for zero TTL")
	}
}
