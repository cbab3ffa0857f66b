package workload

// Time-of-week boundaries in simulated seconds.
const (
	hour = 3600.0
	day  = 24 * hour
	week = 7 * day

	earlyMorningEnd = 8.5 * hour
	morningEnd      = 13 * hour
	lunchEnd        = 15 * hour
	afternoonEnd    = 19 * hour
	eveningEnd      = 21 * hour
)

// Inter-arrival multipliers: larger means sparser traffic.
const (
	earlyMorningFactor = 4.0
	morningFactor      = 0.8
	lunchFactor        = 2.5
	afternoonFactor    = 2.0
	eveningFactor      = 2.2
	nightFactor        = 4.5
	weekendFactor      = 5.0
)

// RateProfile scales the mean inter-arrival time as a function of simulated time.
type RateProfile interface {
	Factor(now float64) float64
}

// ConstantProfile keeps the configured mean inter-arrival time.
type ConstantProfile struct{}

func (ConstantProfile) Factor(float64) float64 { return 1 }

// DiurnalProfile models a working week: dense traffic on weekday mornings,
// sparse at night, sparsest on weekends. Time is in seconds from Monday 00:00.
type DiurnalProfile struct{}

func (DiurnalProfile) Factor(now float64) float64 {
	t := float64(int64(now) % int64(week))
	if t > 5*day {
		return weekendFactor
	}
	t = float64(int64(t) % int64(day))
	switch {
	case t < earlyMorningEnd:
		return earlyMorningFactor
	case t < morningEnd:
		return morningFactor
	case t < lunchEnd:
		return lunchFactor
	case t < afternoonEnd:
		return afternoonFactor
	case t < eveningEnd:
		return eveningFactor
	default:
		return nightFactor
	}
}
