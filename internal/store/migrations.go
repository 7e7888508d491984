package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// OAuth tokens + sync bookkeeping (one row per athlete).
		// deleted marks tokens that must not be used again; the athlete
		// has to complete a fresh authorization grant.
		`CREATE TABLE IF NOT EXISTS tokens (
			athlete_id INTEGER PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_in INTEGER NOT NULL,
			issued_at INTEGER NOT NULL,
			scope TEXT NOT NULL DEFAULT '',
			last_sync_at TEXT,
			deleted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Workout results fetched from the logbook API. Insert-only.
		`CREATE TABLE IF NOT EXISTS results (
			athlete_id INTEGER NOT NULL,
			result_id INTEGER NOT NULL,
			sport TEXT NOT NULL,
			distance INTEGER NOT NULL,
			time_tenths INTEGER NOT NULL,
			achieved_at TEXT NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (athlete_id, result_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_results_achieved ON results(athlete_id, achieved_at)`,

		// Per-athlete PR type catalog, seeded from the built-in template.
		`CREATE TABLE IF NOT EXISTS pr_types (
			athlete_id INTEGER NOT NULL,
			activity_key TEXT NOT NULL,
			sport TEXT NOT NULL,
			metric_type TEXT NOT NULL,
			target_distance INTEGER,
			target_time INTEGER,
			display_order INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (athlete_id, activity_key)
		)`,

		// PR events. pr_scope is the only mutable column; everything else
		// is write-once at extraction time.
		`CREATE TABLE IF NOT EXISTS pr_events (
			athlete_id INTEGER NOT NULL,
			result_id INTEGER NOT NULL,
			activity_key TEXT NOT NULL,
			sport TEXT NOT NULL,
			metric_type TEXT NOT NULL,
			metric_value INTEGER NOT NULL,
			achieved_at TEXT NOT NULL,
			season TEXT NOT NULL,
			pace_per_500m INTEGER,
			pr_scope TEXT NOT NULL DEFAULT '[]',
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (athlete_id, result_id, activity_key)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_pr_events_activity ON pr_events(athlete_id, activity_key)`,

		// Single-flight leases guarding per-athlete operations.
		`CREATE TABLE IF NOT EXISTS leases (
			athlete_id INTEGER NOT NULL,
			operation TEXT NOT NULL,
			token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (athlete_id, operation)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
