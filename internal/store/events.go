package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEventNotFound is returned when a PR event doesn't exist
var ErrEventNotFound = errors.New("pr event not found")

// UpsertPREvent inserts a PR event, keyed by (result, activity key).
// Re-extracting an already-processed result is a no-op merge: existing rows
// are left untouched, including their scope set. Returns whether a new row
// was created.
func (db *DB) UpsertPREvent(ev *PREvent) (created bool, err error) {
	scopes, err := marshalScopes(ev.Scopes)
	if err != nil {
		return false, err
	}

	result, err := db.Exec(`
		INSERT INTO pr_events (athlete_id, result_id, activity_key, sport,
			metric_type, metric_value, achieved_at, season, pace_per_500m, pr_scope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(athlete_id, result_id, activity_key) DO NOTHING
	`, ev.AthleteID, ev.ResultID, ev.ActivityKey, ev.Sport, string(ev.MetricType),
		ev.MetricValue, ev.AchievedAt.UTC().Format(time.RFC3339), ev.Season,
		ev.PacePer500, scopes)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UpdateEventScopes overwrites one event's scope label set.
func (db *DB) UpdateEventScopes(athleteID, resultID int64, activityKey string, scopes []string) error {
	encoded, err := marshalScopes(scopes)
	if err != nil {
		return err
	}

	result, err := db.Exec(`
		UPDATE pr_events
		SET pr_scope = ?
		WHERE athlete_id = ? AND result_id = ? AND activity_key = ?
	`, encoded, athleteID, resultID, activityKey)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ListEventsForActivity returns every event for one activity key, oldest
// first. Scope assignment recomputes over this full sibling set.
func (db *DB) ListEventsForActivity(athleteID int64, activityKey string) ([]PREvent, error) {
	rows, err := db.Query(`
		SELECT athlete_id, result_id, activity_key, sport, metric_type,
			metric_value, achieved_at, season, pace_per_500m, pr_scope
		FROM pr_events
		WHERE athlete_id = ? AND activity_key = ?
		ORDER BY achieved_at ASC
	`, athleteID, activityKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPREvents(rows)
}

// ListAllEvents returns every PR event for an athlete.
func (db *DB) ListAllEvents(athleteID int64) ([]PREvent, error) {
	rows, err := db.Query(`
		SELECT athlete_id, result_id, activity_key, sport, metric_type,
			metric_value, achieved_at, season, pace_per_500m, pr_scope
		FROM pr_events
		WHERE athlete_id = ?
		ORDER BY activity_key ASC, achieved_at ASC
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPREvents(rows)
}

// ListEventResultIDs returns the ids of results that already have at least
// one event. This is the membership test behind incremental recalculation.
func (db *DB) ListEventResultIDs(athleteID int64) (map[int64]bool, error) {
	rows, err := db.Query(`
		SELECT DISTINCT result_id FROM pr_events WHERE athlete_id = ?
	`, athleteID)
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

// DeleteAllEvents removes every PR event for an athlete. Full-rebuild only.
func (db *DB) DeleteAllEvents(athleteID int64) error {
	_, err := db.Exec(`DELETE FROM pr_events WHERE athlete_id = ?`, athleteID)
	return err
}

func scanPREvents(rows *sql.Rows) ([]PREvent, error) {
	var events []PREvent
	for rows.Next() {
		var ev PREvent
		var metricType, achievedAt, scopes string
		if err := rows.Scan(&ev.AthleteID, &ev.ResultID, &ev.ActivityKey, &ev.Sport,
			&metricType, &ev.MetricValue, &achievedAt, &ev.Season, &ev.PacePer500, &scopes); err != nil {
			return nil, err
		}

		ev.MetricType = MetricType(metricType)

		var parseErr error
		ev.AchievedAt, parseErr = time.Parse(time.RFC3339, achievedAt)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing achieved_at %q: %w", achievedAt, parseErr)
		}
		if err := json.Unmarshal([]byte(scopes), &ev.Scopes); err != nil {
			return nil, fmt.Errorf("parsing pr_scope %q: %w", scopes, err)
		}

		events = append(events, ev)
	}
	return events, rows.Err()
}

func marshalScopes(scopes []string) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	encoded, err := json.Marshal(scopes)
	if err != nil {
		return "", fmt.Errorf("encoding pr_scope: %w", err)
	}
	return string(encoded), nil
}
