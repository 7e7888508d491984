package service

import (
	"context"
	"fmt"
	"log/slog"

	"ergsync/internal/records"
	"ergsync/internal/store"
)

// EventsRepo persists PR events.
type EventsRepo interface {
	UpsertPREvent(ev *store.PREvent) (created bool, err error)
	UpdateEventScopes(athleteID, resultID int64, activityKey string, scopes []string) error
	ListEventsForActivity(athleteID int64, activityKey string) ([]store.PREvent, error)
	ListEventResultIDs(athleteID int64) (map[int64]bool, error)
	DeleteAllEvents(athleteID int64) error
}

// CatalogRepo manages the per-athlete PR type catalog.
type CatalogRepo interface {
	SeedCatalog(athleteID int64, template []store.PRType) (seeded bool, err error)
	ListActivePRTypes(athleteID int64) ([]store.PRType, error)
}

// RecalcStore is everything the orchestrator needs from storage.
type RecalcStore interface {
	ResultsRepo
	EventsRepo
	CatalogRepo
	LeaseStore
}

// Recalculator turns stored results into scoped PR events. Extraction and
// scoping failures are non-critical: results storage is the source of truth
// and any miss is repaired by a later rebuild, so errors inside the loops
// are logged and skipped rather than aborting the run.
type Recalculator struct {
	store RecalcStore
	log   *slog.Logger
}

// NewRecalculator creates a recalculation orchestrator.
func NewRecalculator(st RecalcStore, logger *slog.Logger) *Recalculator {
	return &Recalculator{store: st, log: logger}
}

// RecalcResult reports what a recalculation run did.
type RecalcResult struct {
	ResultsProcessed int
	EventsCreated    int
	Rescoped         int // activity keys whose scopes were recomputed
	Skipped          int // records dropped by validation
}

// Rebuild deletes every PR event and re-derives the full set from stored
// results. Used for new accounts and explicit "recalculate everything".
func (r *Recalculator) Rebuild(ctx context.Context, athleteID int64) (*RecalcResult, error) {
	lease, err := r.store.AcquireLease(athleteID, opRecalc, leaseTTL)
	if err != nil {
		return nil, err
	}
	defer r.store.ReleaseLease(athleteID, opRecalc, lease)

	defs, err := r.activeDefinitions(athleteID)
	if err != nil {
		return nil, err
	}

	if err := r.store.DeleteAllEvents(athleteID); err != nil {
		return nil, fmt.Errorf("deleting events: %w", err)
	}

	results, err := r.store.ListResults(athleteID)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}

	return r.extractAndRescope(ctx, athleteID, results, defs)
}

// RecalcNew extracts events only for results that have no event anywhere
// yet, then rescopes the activities those new events touched.
func (r *Recalculator) RecalcNew(ctx context.Context, athleteID int64) (*RecalcResult, error) {
	lease, err := r.store.AcquireLease(athleteID, opRecalc, leaseTTL)
	if err != nil {
		return nil, err
	}
	defer r.store.ReleaseLease(athleteID, opRecalc, lease)

	defs, err := r.activeDefinitions(athleteID)
	if err != nil {
		return nil, err
	}

	results, err := r.newResults(athleteID)
	if err != nil {
		return nil, err
	}

	return r.extractAndRescope(ctx, athleteID, results, defs)
}

// Smart is the primary path: diff stored results against results that
// already have events, extract for the difference only, and stop without a
// single write when nothing new qualified. Running it twice in a row with
// no new upstream data makes the second run a complete no-op.
func (r *Recalculator) Smart(ctx context.Context, athleteID int64) (*RecalcResult, error) {
	lease, err := r.store.AcquireLease(athleteID, opRecalc, leaseTTL)
	if err != nil {
		return nil, err
	}
	defer r.store.ReleaseLease(athleteID, opRecalc, lease)

	defs, err := r.activeDefinitions(athleteID)
	if err != nil {
		return nil, err
	}

	results, err := r.newResults(athleteID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &RecalcResult{}, nil
	}

	return r.extractAndRescope(ctx, athleteID, results, defs)
}

// newResults returns stored results that have no PR event anywhere.
func (r *Recalculator) newResults(athleteID int64) ([]store.Result, error) {
	withEvents, err := r.store.ListEventResultIDs(athleteID)
	if err != nil {
		return nil, fmt.Errorf("listing event result ids: %w", err)
	}

	all, err := r.store.ListResults(athleteID)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}

	var fresh []store.Result
	for _, res := range all {
		if !withEvents[res.ResultID] {
			fresh = append(fresh, res)
		}
	}
	return fresh, nil
}

// activeDefinitions seeds the catalog if needed and returns the active
// definitions in display order.
func (r *Recalculator) activeDefinitions(athleteID int64) ([]store.PRType, error) {
	seeded, err := r.store.SeedCatalog(athleteID, records.DefaultDefinitions())
	if err != nil {
		return nil, fmt.Errorf("seeding catalog: %w", err)
	}
	if seeded {
		r.log.Info("catalog seeded from template", slog.Int64("athlete_id", athleteID))
	}

	defs, err := r.store.ListActivePRTypes(athleteID)
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}
	return defs, nil
}

// extractAndRescope derives events for the given results, writes the new
// ones, and recomputes scopes for every activity key they touched.
// Extraction is pure, so when nothing qualifies the store is never written.
func (r *Recalculator) extractAndRescope(ctx context.Context, athleteID int64, results []store.Result, defs []store.PRType) (*RecalcResult, error) {
	run := &RecalcResult{}

	var extracted []store.PREvent
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		run.ResultsProcessed++

		events, skipped := records.Extract(res, defs)
		for _, err := range skipped {
			run.Skipped++
			r.log.Warn("skipping record during extraction",
				slog.Int64("athlete_id", athleteID),
				slog.Int64("result_id", res.ResultID),
				slog.Any("error", err))
		}
		extracted = append(extracted, events...)
	}

	if len(extracted) == 0 {
		return run, nil
	}

	touched := make(map[string]bool)
	for i := range extracted {
		created, err := r.store.UpsertPREvent(&extracted[i])
		if err != nil {
			r.log.Error("storing pr event failed",
				slog.Int64("athlete_id", athleteID),
				slog.Int64("result_id", extracted[i].ResultID),
				slog.String("activity_key", extracted[i].ActivityKey),
				slog.Any("error", err))
			continue
		}
		if created {
			run.EventsCreated++
			touched[extracted[i].ActivityKey] = true
		}
	}

	for key := range touched {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if err := r.rescope(athleteID, key); err != nil {
			r.log.Error("rescoring activity failed",
				slog.Int64("athlete_id", athleteID),
				slog.String("activity_key", key),
				slog.Any("error", err))
			continue
		}
		run.Rescoped++
	}

	r.log.Info("recalculation complete",
		slog.Int64("athlete_id", athleteID),
		slog.Int("results", run.ResultsProcessed),
		slog.Int("events_created", run.EventsCreated),
		slog.Int("rescoped", run.Rescoped))

	return run, nil
}

// rescope recomputes and overwrites the scope set of every event in one
// activity, so a new record demotes the previous holder in any grouping.
func (r *Recalculator) rescope(athleteID int64, activityKey string) error {
	events, err := r.store.ListEventsForActivity(athleteID, activityKey)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	scopes := records.AssignScopes(events)
	for resultID, labels := range scopes {
		if err := r.store.UpdateEventScopes(athleteID, resultID, activityKey, labels); err != nil {
			return fmt.Errorf("updating scopes for result %d: %w", resultID, err)
		}
	}
	return nil
}
