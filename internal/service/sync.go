package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ergsync/internal/logbook"
	"ergsync/internal/store"
)

const (
	opSync   = "sync"
	opRecalc = "recalc"

	// leaseTTL bounds how long a crashed invocation can block the next one.
	leaseTTL = 5 * time.Minute
)

// ResultsClient is the slice of the logbook client the sync path needs.
type ResultsClient interface {
	FetchAll(ctx context.Context, tokens logbook.TokenSet, updatedAfter time.Time) ([]logbook.Result, logbook.TokenSet, error)
}

// TokenStore persists an athlete's OAuth tokens and sync bookkeeping.
type TokenStore interface {
	GetTokens(athleteID int64) (*store.Tokens, error)
	UpdateTokens(athleteID int64, accessToken, refreshToken string, expiresIn, issuedAt int64, scope string) error
	SoftDeleteTokens(athleteID int64) error
}

// ResultsRepo persists and lists stored workout results.
type ResultsRepo interface {
	StoreResults(ctx context.Context, athleteID int64, results []store.Result, syncedAt time.Time) error
	ListResultIDs(athleteID int64) (map[int64]bool, error)
	ListResults(athleteID int64) ([]store.Result, error)
}

// LeaseStore is the per-(athlete, operation) single-flight guard.
type LeaseStore interface {
	AcquireLease(athleteID int64, operation string, ttl time.Duration) (string, error)
	ReleaseLease(athleteID int64, operation, token string) error
}

// SyncStore is everything the sync coordinator needs from storage.
// *store.DB satisfies it; tests substitute fakes or an in-memory store.
type SyncStore interface {
	TokenStore
	ResultsRepo
	LeaseStore
}

// Syncer pulls workout history from the results API into the local store.
type Syncer struct {
	client ResultsClient
	store  SyncStore
	log    *slog.Logger
}

// NewSyncer creates a sync coordinator.
func NewSyncer(client ResultsClient, st SyncStore, logger *slog.Logger) *Syncer {
	return &Syncer{client: client, store: st, log: logger}
}

// SyncResult reports what a sync run did.
type SyncResult struct {
	Bootstrap bool // full-history fetch (first sync or forced)
	Fetched   int  // results returned by the API
	Stored    int  // results not previously stored
}

// Sync fetches an athlete's results and stores the ones not yet present.
// The fetch window is the whole history on the first run (or when forceFull
// is set), otherwise everything updated since the last successful sync.
// last_sync_at advances only when every new result committed.
func (s *Syncer) Sync(ctx context.Context, athleteID int64, forceFull bool) (*SyncResult, error) {
	lease, err := s.store.AcquireLease(athleteID, opSync, leaseTTL)
	if err != nil {
		return nil, err
	}
	defer s.store.ReleaseLease(athleteID, opSync, lease)

	tokens, err := s.store.GetTokens(athleteID)
	if err != nil {
		return nil, err
	}

	var updatedAfter time.Time
	result := &SyncResult{Bootstrap: tokens.LastSyncAt == nil || forceFull}
	if !result.Bootstrap {
		updatedAfter = *tokens.LastSyncAt
	}

	// Stamp the window before fetching so a result finishing mid-run is
	// picked up again next time instead of falling between windows.
	syncedAt := time.Now()

	sent := logbook.TokenSet{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		IssuedAt:     tokens.IssuedAt,
		Scope:        tokens.Scope,
	}

	fetched, fresh, fetchErr := s.client.FetchAll(ctx, sent, updatedAfter)

	// Refreshed tokens are persisted even when the fetch itself failed;
	// the refresh grant was consumed either way.
	if fresh != sent {
		if err := s.store.UpdateTokens(athleteID, fresh.AccessToken, fresh.RefreshToken,
			fresh.ExpiresIn, fresh.IssuedAt, fresh.Scope); err != nil {
			s.log.Error("persisting refreshed tokens failed",
				slog.Int64("athlete_id", athleteID), slog.Any("error", err))
		}
	}

	if fetchErr != nil {
		if logbook.IsReauth(fetchErr) {
			if err := s.store.SoftDeleteTokens(athleteID); err != nil {
				s.log.Error("soft-deleting tokens failed",
					slog.Int64("athlete_id", athleteID), slog.Any("error", err))
			}
			s.log.Warn("session requires re-authorization", slog.Int64("athlete_id", athleteID))
		}
		return result, fmt.Errorf("fetching results: %w", fetchErr)
	}
	result.Fetched = len(fetched)

	storedIDs, err := s.store.ListResultIDs(athleteID)
	if err != nil {
		return result, fmt.Errorf("listing stored results: %w", err)
	}

	var newResults []store.Result
	for _, r := range fetched {
		if storedIDs[r.ID] {
			continue
		}
		newResults = append(newResults, store.Result{
			AthleteID:  athleteID,
			ResultID:   r.ID,
			Sport:      r.Sport,
			Distance:   r.Distance,
			Time:       r.Time,
			AchievedAt: r.AchievedAt.Time,
		})
	}
	result.Stored = len(newResults)

	if err := s.store.StoreResults(ctx, athleteID, newResults, syncedAt); err != nil {
		return result, fmt.Errorf("storing results: %w", err)
	}

	s.log.Info("sync complete",
		slog.Int64("athlete_id", athleteID),
		slog.Bool("bootstrap", result.Bootstrap),
		slog.Int("fetched", result.Fetched),
		slog.Int("stored", result.Stored))

	return result, nil
}
