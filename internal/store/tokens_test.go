package store

import (
	"errors"
	"testing"
)

func TestGetTokensMissing(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetTokens(1)
	if !errors.Is(err, ErrNoAuth) {
		t.Errorf("expected ErrNoAuth, got %v", err)
	}
}

func TestSaveAndGetTokens(t *testing.T) {
	db := setupTestDB(t)

	saved := &Tokens{
		AthleteID:    42,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    3600,
		IssuedAt:     1700000000000,
		Scope:        "user:read,results:read",
	}
	if err := db.SaveTokens(saved); err != nil {
		t.Fatalf("saving tokens: %v", err)
	}

	got, err := db.GetTokens(42)
	if err != nil {
		t.Fatalf("getting tokens: %v", err)
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" {
		t.Errorf("unexpected tokens: %+v", got)
	}
	if got.ExpiresIn != 3600 || got.IssuedAt != 1700000000000 {
		t.Errorf("unexpected expiry fields: %+v", got)
	}
	if got.LastSyncAt != nil {
		t.Errorf("expected nil last_sync_at before first sync, got %v", *got.LastSyncAt)
	}
}

func TestUpdateTokens(t *testing.T) {
	db := setupTestDB(t)

	if err := db.SaveTokens(&Tokens{AthleteID: 42, AccessToken: "old", RefreshToken: "old-r"}); err != nil {
		t.Fatalf("saving tokens: %v", err)
	}
	if err := db.UpdateTokens(42, "new", "new-r", 7200, 1700000100000, "user:read"); err != nil {
		t.Fatalf("updating tokens: %v", err)
	}

	got, err := db.GetTokens(42)
	if err != nil {
		t.Fatalf("getting tokens: %v", err)
	}
	if got.AccessToken != "new" || got.RefreshToken != "new-r" || got.ExpiresIn != 7200 {
		t.Errorf("update not applied: %+v", got)
	}

	if err := db.UpdateTokens(99, "x", "y", 1, 1, ""); !errors.Is(err, ErrNoAuth) {
		t.Errorf("expected ErrNoAuth for unknown athlete, got %v", err)
	}
}

func TestSoftDeleteTokens(t *testing.T) {
	db := setupTestDB(t)

	if err := db.SaveTokens(&Tokens{AthleteID: 42, AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("saving tokens: %v", err)
	}
	if err := db.SoftDeleteTokens(42); err != nil {
		t.Fatalf("soft-deleting tokens: %v", err)
	}

	if _, err := db.GetTokens(42); !errors.Is(err, ErrNoAuth) {
		t.Errorf("expected ErrNoAuth after soft delete, got %v", err)
	}
	if err := db.UpdateTokens(42, "x", "y", 1, 1, ""); !errors.Is(err, ErrNoAuth) {
		t.Errorf("expected ErrNoAuth updating soft-deleted row, got %v", err)
	}

	// A fresh grant resurrects the row
	if err := db.SaveTokens(&Tokens{AthleteID: 42, AccessToken: "b", RefreshToken: "r2"}); err != nil {
		t.Fatalf("re-saving tokens: %v", err)
	}
	got, err := db.GetTokens(42)
	if err != nil {
		t.Fatalf("getting tokens after re-grant: %v", err)
	}
	if got.AccessToken != "b" {
		t.Errorf("expected re-granted access token, got %q", got.AccessToken)
	}
}

func TestCurrentAthleteID(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.CurrentAthleteID(); !errors.Is(err, ErrNoAuth) {
		t.Errorf("expected ErrNoAuth on empty table, got %v", err)
	}

	if err := db.SaveTokens(&Tokens{AthleteID: 7, AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("saving tokens: %v", err)
	}
	id, err := db.CurrentAthleteID()
	if err != nil {
		t.Fatalf("getting current athlete: %v", err)
	}
	if id != 7 {
		t.Errorf("expected athlete 7, got %d", id)
	}

	if err := db.SoftDeleteTokens(7); err != nil {
		t.Fatalf("soft-deleting tokens: %v", err)
	}
	if _, err := db.CurrentAthleteID(); !errors.Is(err, ErrNoAuth) {
		t.Errorf("expected ErrNoAuth after soft delete, got %v", err)
	}
}
