package store

import (
	"errors"
	"testing"
	"time"
)

func TestAcquireLease(t *testing.T) {
	db := setupTestDB(t)

	token, err := db.AcquireLease(1, "sync", time.Minute)
	if err != nil {
		t.Fatalf("acquiring lease: %v", err)
	}
	if token == "" {
		t.Fatal("expected a lease token")
	}

	if _, err := db.AcquireLease(1, "sync", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Errorf("expected ErrLeaseHeld, got %v", err)
	}

	// Different operation and different athlete are independent
	if _, err := db.AcquireLease(1, "recalc", time.Minute); err != nil {
		t.Errorf("expected independent lease per operation, got %v", err)
	}
	if _, err := db.AcquireLease(2, "sync", time.Minute); err != nil {
		t.Errorf("expected independent lease per athlete, got %v", err)
	}
}

func TestAcquireLeaseExpiredTakeover(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.AcquireLease(1, "sync", -time.Second); err != nil {
		t.Fatalf("acquiring expired lease: %v", err)
	}

	token, err := db.AcquireLease(1, "sync", time.Minute)
	if err != nil {
		t.Fatalf("expected takeover of expired lease, got %v", err)
	}
	if token == "" {
		t.Fatal("expected a lease token")
	}
}

func TestReleaseLease(t *testing.T) {
	db := setupTestDB(t)

	token, err := db.AcquireLease(1, "sync", time.Minute)
	if err != nil {
		t.Fatalf("acquiring lease: %v", err)
	}
	if err := db.ReleaseLease(1, "sync", token); err != nil {
		t.Fatalf("releasing lease: %v", err)
	}

	if _, err := db.AcquireLease(1, "sync", time.Minute); err != nil {
		t.Errorf("expected lease free after release, got %v", err)
	}
}

func TestReleaseLeaseWrongToken(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.AcquireLease(1, "sync", time.Minute); err != nil {
		t.Fatalf("acquiring lease: %v", err)
	}

	// A stale token must not free someone else's lease
	if err := db.ReleaseLease(1, "sync", "stale-token"); err != nil {
		t.Fatalf("releasing with wrong token: %v", err)
	}
	if _, err := db.AcquireLease(1, "sync", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Errorf("expected lease still held, got %v", err)
	}
}
