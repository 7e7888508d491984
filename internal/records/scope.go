package records

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ergsync/internal/store"
)

// ScopeKind discriminates the temporal scopes a record can hold.
type ScopeKind int

const (
	ScopeAllTime ScopeKind = iota
	ScopeSeason
	ScopeYear
)

// Scope is one temporal category a PR event can win: all-time, a season
// (May 1 through Apr 30, identified by its ending year), or a calendar year.
type Scope struct {
	Kind     ScopeKind
	SeasonID string // ScopeSeason only
	Year     int    // ScopeYear only
}

// AllTimeScope returns the all-time scope.
func AllTimeScope() Scope { return Scope{Kind: ScopeAllTime} }

// SeasonScope returns the scope for one season identifier.
func SeasonScope(id string) Scope { return Scope{Kind: ScopeSeason, SeasonID: id} }

// YearScope returns the scope for one calendar year.
func YearScope(year int) Scope { return Scope{Kind: ScopeYear, Year: year} }

// Label renders the scope as its persisted label.
func (s Scope) Label() string {
	switch s.Kind {
	case ScopeSeason:
		return "season-" + s.SeasonID
	case ScopeYear:
		return fmt.Sprintf("year-%d", s.Year)
	default:
		return "all-time"
	}
}

// ParseScopeLabel is the inverse of Label.
func ParseScopeLabel(label string) (Scope, error) {
	switch {
	case label == "all-time":
		return AllTimeScope(), nil
	case strings.HasPrefix(label, "season-"):
		id := strings.TrimPrefix(label, "season-")
		if id == "" {
			return Scope{}, fmt.Errorf("invalid scope label %q", label)
		}
		return SeasonScope(id), nil
	case strings.HasPrefix(label, "year-"):
		year, err := strconv.Atoi(strings.TrimPrefix(label, "year-"))
		if err != nil {
			return Scope{}, fmt.Errorf("invalid scope label %q", label)
		}
		return YearScope(year), nil
	}
	return Scope{}, fmt.Errorf("invalid scope label %q", label)
}

// AssignScopes recomputes scope labels for the full event set of one
// activity key. It returns the new label set for every event in the input,
// keyed by result id; events that won nothing map to an empty set. The
// caller must overwrite each event's stored set, because adding one record
// can demote a previous holder in any grouping.
func AssignScopes(events []store.PREvent) map[int64][]string {
	scopes := make(map[int64][]string, len(events))
	for _, ev := range events {
		scopes[ev.ResultID] = []string{}
	}
	if len(events) == 0 {
		return scopes
	}

	award := func(winner *store.PREvent, s Scope) {
		scopes[winner.ResultID] = append(scopes[winner.ResultID], s.Label())
	}

	// Global winner
	award(best(events), AllTimeScope())

	// One winner per season
	for id, group := range groupBy(events, func(ev store.PREvent) string { return ev.Season }) {
		award(best(group), SeasonScope(id))
	}

	// One winner per calendar year (distinct from season)
	for y, group := range groupBy(events, func(ev store.PREvent) string {
		return strconv.Itoa(ev.AchievedAt.Year())
	}) {
		year, _ := strconv.Atoi(y)
		award(best(group), YearScope(year))
	}

	for id := range scopes {
		sort.Strings(scopes[id])
	}
	return scopes
}

// best returns the winning event of a non-empty group: minimum metric value
// for time-type, maximum for distance-type. Ties go to the earliest
// achieved_at, then the lowest result id, so assignment is deterministic.
func best(events []store.PREvent) *store.PREvent {
	winner := &events[0]
	for i := 1; i < len(events); i++ {
		if beats(&events[i], winner) {
			winner = &events[i]
		}
	}
	return winner
}

func beats(a, b *store.PREvent) bool {
	if a.MetricValue != b.MetricValue {
		if a.MetricType == store.MetricDistance {
			return a.MetricValue > b.MetricValue
		}
		return a.MetricValue < b.MetricValue
	}
	if !a.AchievedAt.Equal(b.AchievedAt) {
		return a.AchievedAt.Before(b.AchievedAt)
	}
	return a.ResultID < b.ResultID
}

func groupBy(events []store.PREvent, key func(store.PREvent) string) map[string][]store.PREvent {
	groups := make(map[string][]store.PREvent)
	for _, ev := range events {
		k := key(ev)
		groups[k] = append(groups[k], ev)
	}
	return groups
}
