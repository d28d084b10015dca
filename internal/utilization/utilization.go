package utilization

import (
	"math"

	"jobwatch/internal/duration"
)

type Tier int

const (
	Low Tier = iota
	Medium
	High
)

// Tier boundaries. A value equal to a boundary belongs to the higher tier.
const (
	MediumThreshold = 50.0
	HighThreshold   = 75.0
)

func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Percentage returns how much of the requested time has elapsed, rounded to two
// decimals and capped at 100. A job with nothing requested is 0% utilized.
func Percentage(elapsed, requested int64) (float64, Tier) {
	if requested <= 0 || elapsed <= 0 {
		return 0, Low
	}
	value := math.Round(float64(elapsed)/float64(requested)*100*100) / 100
	if value > 100 {
		value = 100
	}
	return value, TierOf(value)
}

// FromText is Percentage over scheduler duration strings. Unparseable values count as zero.
func FromText(elapsed, requested string) (float64, Tier) {
	e, err := duration.Parse(elapsed)
	if err != nil {
		e = 0
	}
	r, err := duration.Parse(requested)
	if err != nil {
		r = 0
	}
	return Percentage(e, r)
}

func TierOf(value float64) Tier {
	switch {
	case value >= HighThreshold:
		return High
	case value >= MediumThreshold:
		return Medium
	default:
		return Low
	}
}
