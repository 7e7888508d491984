package records

import (
	"fmt"
	"math"
	"time"

	"ergsync/internal/store"
)

// ValidationError marks a malformed catalog definition or result. The
// offending record is skipped; processing continues with the remainder.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// SeasonID derives the athletic season identifier for a timestamp. A season
// runs May 1 of year Y-1 through Apr 30 of year Y and is identified by Y.
func SeasonID(t time.Time) string {
	year := t.Year()
	if t.Month() >= time.May {
		year++
	}
	return fmt.Sprintf("%d", year)
}

// PacePer500 computes the pace over 500m, rounded to the nearest unit.
// pace = time * 50 / distance, e.g. 12000 tenths over 2000m gives 300.
// Returns nil when distance is zero.
func PacePer500(timeTenths, distance int64) *int64 {
	if distance <= 0 {
		return nil
	}
	pace := int64(math.Round(float64(timeTenths) * 50 / float64(distance)))
	return &pace
}

// Extract matches one result against the athlete's catalog definitions and
// builds a PR event for every definition it qualifies for. Definitions must
// share the result's sport exactly; a time-type definition qualifies on an
// exact target-distance match, a distance-type on an exact target-time
// match. Malformed definitions are reported and skipped.
func Extract(result store.Result, defs []store.PRType) ([]store.PREvent, []error) {
	if err := validateResult(result); err != nil {
		return nil, []error{err}
	}

	var events []store.PREvent
	var skipped []error

	for _, def := range defs {
		if err := validateDefinition(def); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if !def.Active || def.Sport != result.Sport {
			continue
		}

		var metricValue int64
		switch def.MetricType {
		case store.MetricTime:
			if result.Distance != *def.TargetDistance {
				continue
			}
			metricValue = result.Time
		case store.MetricDistance:
			if result.Time != *def.TargetTime {
				continue
			}
			metricValue = result.Distance
		}

		events = append(events, store.PREvent{
			AthleteID:   result.AthleteID,
			ResultID:    result.ResultID,
			ActivityKey: def.ActivityKey,
			Sport:       result.Sport,
			MetricType:  def.MetricType,
			MetricValue: metricValue,
			AchievedAt:  result.AchievedAt,
			Season:      SeasonID(result.AchievedAt),
			PacePer500:  PacePer500(result.Time, result.Distance),
		})
	}

	return events, skipped
}

func validateResult(r store.Result) error {
	if r.Sport == "" {
		return &ValidationError{Reason: fmt.Sprintf("result %d has no sport", r.ResultID)}
	}
	if r.Time <= 0 || r.Distance < 0 {
		return &ValidationError{Reason: fmt.Sprintf("result %d has invalid time/distance", r.ResultID)}
	}
	if r.AchievedAt.IsZero() {
		return &ValidationError{Reason: fmt.Sprintf("result %d has no achieved-at timestamp", r.ResultID)}
	}
	return nil
}

func validateDefinition(def store.PRType) error {
	switch def.MetricType {
	case store.MetricTime:
		if def.TargetDistance == nil || def.TargetTime != nil {
			return &ValidationError{Reason: fmt.Sprintf("definition %s: time metric needs exactly a target distance", def.ActivityKey)}
		}
	case store.MetricDistance:
		if def.TargetTime == nil || def.TargetDistance != nil {
			return &ValidationError{Reason: fmt.Sprintf("definition %s: distance metric needs exactly a target time", def.ActivityKey)}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("definition %s: unknown metric type %q", def.ActivityKey, def.MetricType)}
	}
	return nil
}
