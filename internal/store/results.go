package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// resultBatchSize is the write-batch limit per INSERT statement. Chunk
// boundaries are mechanical only; the whole run commits as one transaction.
const resultBatchSize = 500

// StoreResults writes new results and advances the athlete's last_sync_at
// inside a single transaction. Either every chunk and the timestamp commit
// together, or none of them do, so a failed run never silently narrows the
// next sync window.
func (db *DB) StoreResults(ctx context.Context, athleteID int64, results []Result, syncedAt time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(results); start += resultBatchSize {
		end := start + resultBatchSize
		if end > len(results) {
			end = len(results)
		}
		chunk := results[start:end]

		placeholders := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*6)
		for _, r := range chunk {
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?)")
			args = append(args, athleteID, r.ResultID, r.Sport, r.Distance,
				r.Time, r.AchievedAt.UTC().Format(time.RFC3339))
		}

		query := `
			INSERT INTO results (athlete_id, result_id, sport, distance, time_tenths, achieved_at)
			VALUES ` + strings.Join(placeholders, ", ") + `
			ON CONFLICT(athlete_id, result_id) DO NOTHING`

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("storing results chunk at %d: %w", start, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tokens
		SET last_sync_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ?
	`, syncedAt.UTC().Format(time.RFC3339), athleteID); err != nil {
		return fmt.Errorf("advancing last_sync_at: %w", err)
	}

	return tx.Commit()
}

// ListResultIDs returns the set of stored result ids for an athlete.
func (db *DB) ListResultIDs(athleteID int64) (map[int64]bool, error) {
	rows, err := db.Query(`SELECT result_id FROM results WHERE athlete_id = ?`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ListResults returns all stored results for an athlete, oldest first.
func (db *DB) ListResults(athleteID int64) ([]Result, error) {
	rows, err := db.Query(`
		SELECT athlete_id, result_id, sport, distance, time_tenths, achieved_at
		FROM results
		WHERE athlete_id = ?
		ORDER BY achieved_at ASC
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var achievedAt string
		if err := rows.Scan(&r.AthleteID, &r.ResultID, &r.Sport, &r.Distance, &r.Time, &achievedAt); err != nil {
			return nil, err
		}
		var parseErr error
		r.AchievedAt, parseErr = time.Parse(time.RFC3339, achievedAt)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing achieved_at %q: %w", achievedAt, parseErr)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountResults returns the total number of stored results for an athlete.
func (db *DB) CountResults(athleteID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM results WHERE athlete_id = ?`, athleteID).Scan(&count)
	return count, err
}
