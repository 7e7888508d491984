package store

import (
	"database/sql"
	"fmt"
)

// SeedCatalog copies the template definitions into an athlete's catalog.
// It is a no-op when the athlete already has at least one definition, so
// re-seeding never duplicates or overwrites customizations.
func (db *DB) SeedCatalog(athleteID int64, template []PRType) (seeded bool, err error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pr_types WHERE athlete_id = ?`, athleteID).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO pr_types (athlete_id, activity_key, sport, metric_type,
			target_distance, target_time, display_order, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	for _, def := range template {
		if _, err := stmt.Exec(athleteID, def.ActivityKey, def.Sport, string(def.MetricType),
			def.TargetDistance, def.TargetTime, def.DisplayOrder, boolToInt(def.Active)); err != nil {
			return false, fmt.Errorf("seeding %s: %w", def.ActivityKey, err)
		}
	}

	return true, tx.Commit()
}

// ListActivePRTypes returns an athlete's active definitions in display order.
func (db *DB) ListActivePRTypes(athleteID int64) ([]PRType, error) {
	rows, err := db.Query(`
		SELECT athlete_id, activity_key, sport, metric_type, target_distance,
			target_time, display_order, is_active
		FROM pr_types
		WHERE athlete_id = ? AND is_active = 1
		ORDER BY display_order ASC
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPRTypes(rows)
}

// ListPRTypes returns every definition in an athlete's catalog.
func (db *DB) ListPRTypes(athleteID int64) ([]PRType, error) {
	rows, err := db.Query(`
		SELECT athlete_id, activity_key, sport, metric_type, target_distance,
			target_time, display_order, is_active
		FROM pr_types
		WHERE athlete_id = ?
		ORDER BY display_order ASC
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPRTypes(rows)
}

// UpsertPRType inserts or replaces one catalog definition. This is the
// customization path; seeded defaults are ordinary rows afterwards.
func (db *DB) UpsertPRType(def *PRType) error {
	_, err := db.Exec(`
		INSERT INTO pr_types (athlete_id, activity_key, sport, metric_type,
			target_distance, target_time, display_order, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(athlete_id, activity_key) DO UPDATE SET
			sport = excluded.sport,
			metric_type = excluded.metric_type,
			target_distance = excluded.target_distance,
			target_time = excluded.target_time,
			display_order = excluded.display_order,
			is_active = excluded.is_active
	`, def.AthleteID, def.ActivityKey, def.Sport, string(def.MetricType),
		def.TargetDistance, def.TargetTime, def.DisplayOrder, boolToInt(def.Active))
	return err
}

func scanPRTypes(rows *sql.Rows) ([]PRType, error) {
	var defs []PRType
	for rows.Next() {
		var def PRType
		var metricType string
		var active int
		if err := rows.Scan(&def.AthleteID, &def.ActivityKey, &def.Sport, &metricType,
			&def.TargetDistance, &def.TargetTime, &def.DisplayOrder, &active); err != nil {
			return nil, err
		}
		def.MetricType = MetricType(metricType)
		def.Active = active == 1
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
