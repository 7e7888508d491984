package store

import "time"

// MetricType says which dimension of a PR type is fixed and which is ranked.
type MetricType string

const (
	// MetricTime: fixed distance, fastest time wins (e.g. "2000m row").
	MetricTime MetricType = "time"
	// MetricDistance: fixed duration, farthest distance wins (e.g. "60 minutes").
	MetricDistance MetricType = "distance"
)

// Tokens is the persisted OAuth token record for one athlete.
type Tokens struct {
	AthleteID    int64      `db:"athlete_id"`
	AccessToken  string     `db:"access_token"`
	RefreshToken string     `db:"refresh_token"`
	ExpiresIn    int64      `db:"expires_in"` // seconds
	IssuedAt     int64      `db:"issued_at"`  // epoch ms
	Scope        string     `db:"scope"`
	LastSyncAt   *time.Time `db:"last_sync_at"` // nil until first successful sync
	Deleted      bool       `db:"deleted"`      // soft-delete: forces re-authorization
}

// Result is a stored workout result. Identity is (athlete, external id);
// rows are immutable once written.
type Result struct {
	AthleteID  int64     `db:"athlete_id"`
	ResultID   int64     `db:"result_id"`
	Sport      string    `db:"sport"`
	Distance   int64     `db:"distance"`    // meters
	Time       int64     `db:"time_tenths"` // tenths of a second
	AchievedAt time.Time `db:"achieved_at"`
}

// PRType is one record definition in an athlete's catalog.
// Exactly one of TargetDistance/TargetTime is set, per MetricType.
type PRType struct {
	AthleteID      int64      `db:"athlete_id"`
	ActivityKey    string     `db:"activity_key"`
	Sport          string     `db:"sport"`
	MetricType     MetricType `db:"metric_type"`
	TargetDistance *int64     `db:"target_distance"` // meters, MetricTime only
	TargetTime     *int64     `db:"target_time"`     // tenths, MetricDistance only
	DisplayOrder   int        `db:"display_order"`
	Active         bool       `db:"is_active"`
}

// PREvent records that a result qualified for a PR type. At most one event
// exists per (result, activity key). Scopes is recomputed wholesale by
// every scope-assignment pass; all other fields are write-once.
type PREvent struct {
	AthleteID   int64      `db:"athlete_id"`
	ResultID    int64      `db:"result_id"`
	ActivityKey string     `db:"activity_key"`
	Sport       string     `db:"sport"`
	MetricType  MetricType `db:"metric_type"`
	MetricValue int64      `db:"metric_value"` // time tenths or distance meters
	AchievedAt  time.Time  `db:"achieved_at"`
	Season      string     `db:"season"`
	PacePer500  *int64     `db:"pace_per_500m"` // tenths per 500m, nil when distance is 0
	Scopes      []string   `db:"pr_scope"`      // scope labels, e.g. "all-time"
}
