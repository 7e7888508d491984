package records

import "ergsync/internal/store"

// Standard target dimensions.
const (
	SportRower  = "rower"
	SportSkiErg = "skierg"
	SportBikeE  = "bikeerg"
)

// DefaultDefinitions is the global catalog template. Every athlete's
// catalog starts as a copy of this; afterwards the rows are theirs to
// customize and are never overwritten by re-seeding.
func DefaultDefinitions() []store.PRType {
	return []store.PRType{
		// Fixed distance, fastest time
		timeType("row_500m", SportRower, 500, 1),
		timeType("row_1000m", SportRower, 1000, 2),
		timeType("row_2000m", SportRower, 2000, 3),
		timeType("row_5000m", SportRower, 5000, 4),
		timeType("row_6000m", SportRower, 6000, 5),
		timeType("row_10000m", SportRower, 10000, 6),
		timeType("row_half_marathon", SportRower, 21097, 7),

		// Fixed duration, farthest distance (targets in tenths of a second)
		distanceType("row_1min", SportRower, 600, 8),
		distanceType("row_4min", SportRower, 2400, 9),
		distanceType("row_30min", SportRower, 18000, 10),
		distanceType("row_60min", SportRower, 36000, 11),

		timeType("ski_1000m", SportSkiErg, 1000, 12),
		timeType("ski_2000m", SportSkiErg, 2000, 13),
		timeType("ski_5000m", SportSkiErg, 5000, 14),
		distanceType("ski_60min", SportSkiErg, 36000, 15),

		timeType("bike_1000m", SportBikeE, 1000, 16),
		timeType("bike_4000m", SportBikeE, 4000, 17),
		distanceType("bike_60min", SportBikeE, 36000, 18),
	}
}

func timeType(key, sport string, targetDistance int64, order int) store.PRType {
	return store.PRType{
		ActivityKey:    key,
		Sport:          sport,
		MetricType:     store.MetricTime,
		TargetDistance: &targetDistance,
		DisplayOrder:   order,
		Active:         true,
	}
}

func distanceType(key, sport string, targetTime int64, order int) store.PRType {
	return store.PRType{
		ActivityKey:  key,
		Sport:        sport,
		MetricType:   store.MetricDistance,
		TargetTime:   &targetTime,
		DisplayOrder: order,
		Active:       true,
	}
}
