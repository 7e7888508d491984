package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoAuth is returned when no usable authentication is stored
var ErrNoAuth = errors.New("no authentication stored")

// GetTokens retrieves the stored token record for an athlete.
// Soft-deleted rows behave like missing ones: the athlete must re-authorize.
func (db *DB) GetTokens(athleteID int64) (*Tokens, error) {
	row := db.QueryRow(`
		SELECT athlete_id, access_token, refresh_token, expires_in, issued_at,
			scope, last_sync_at, deleted
		FROM tokens
		WHERE athlete_id = ?
	`, athleteID)

	var t Tokens
	var lastSync sql.NullString
	var deleted int
	err := row.Scan(&t.AthleteID, &t.AccessToken, &t.RefreshToken, &t.ExpiresIn,
		&t.IssuedAt, &t.Scope, &lastSync, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAuth
	}
	if err != nil {
		return nil, err
	}

	t.Deleted = deleted == 1
	if t.Deleted {
		return nil, ErrNoAuth
	}
	if lastSync.Valid {
		parsed, parseErr := time.Parse(time.RFC3339, lastSync.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing last_sync_at %q: %w", lastSync.String, parseErr)
		}
		t.LastSyncAt = &parsed
	}
	return &t, nil
}

// CurrentAthleteID returns the athlete who most recently authorized.
func (db *DB) CurrentAthleteID() (int64, error) {
	var id int64
	err := db.QueryRow(`
		SELECT athlete_id FROM tokens
		WHERE deleted = 0
		ORDER BY updated_at DESC
		LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoAuth
	}
	return id, err
}

// SaveTokens stores or replaces an athlete's token record. A fresh grant
// clears the soft-delete flag and resets the sync window.
func (db *DB) SaveTokens(t *Tokens) error {
	_, err := db.Exec(`
		INSERT INTO tokens (athlete_id, access_token, refresh_token, expires_in,
			issued_at, scope, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP)
		ON CONFLICT(athlete_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_in = excluded.expires_in,
			issued_at = excluded.issued_at,
			scope = excluded.scope,
			deleted = 0,
			updated_at = CURRENT_TIMESTAMP
	`, t.AthleteID, t.AccessToken, t.RefreshToken, t.ExpiresIn, t.IssuedAt, t.Scope)
	return err
}

// UpdateTokens replaces just the token fields after a refresh, leaving the
// sync bookkeeping untouched.
func (db *DB) UpdateTokens(athleteID int64, accessToken, refreshToken string, expiresIn, issuedAt int64, scope string) error {
	result, err := db.Exec(`
		UPDATE tokens
		SET access_token = ?, refresh_token = ?, expires_in = ?, issued_at = ?,
			scope = ?, updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ? AND deleted = 0
	`, accessToken, refreshToken, expiresIn, issuedAt, scope, athleteID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNoAuth
	}
	return nil
}

// SoftDeleteTokens marks an athlete's tokens unusable. Called when the API
// says the refresh token or client credentials are no longer valid.
func (db *DB) SoftDeleteTokens(athleteID int64) error {
	_, err := db.Exec(`
		UPDATE tokens
		SET deleted = 1, updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ?
	`, athleteID)
	return err
}
