package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLeaseHeld is returned when another invocation holds the lease
var ErrLeaseHeld = errors.New("operation already in progress")

// AcquireLease takes the single-flight lease for one (athlete, operation)
// pair. A live lease held by someone else fails with ErrLeaseHeld; an
// expired lease is taken over. The returned token must be passed to
// ReleaseLease.
func (db *DB) AcquireLease(athleteID int64, operation string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	now := time.Now()

	result, err := db.Exec(`
		INSERT INTO leases (athlete_id, operation, token, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(athlete_id, operation) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at
		WHERE leases.expires_at <= ?
	`, athleteID, operation, token, now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return "", err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return "", ErrLeaseHeld
	}
	return token, nil
}

// ReleaseLease frees a lease if it is still ours. Releasing a lease that
// expired and was taken over is a no-op.
func (db *DB) ReleaseLease(athleteID int64, operation, token string) error {
	_, err := db.Exec(`
		DELETE FROM leases
		WHERE athlete_id = ? AND operation = ? AND token = ?
	`, athleteID, operation, token)
	return err
}
