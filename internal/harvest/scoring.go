package harvest

import (
	"math"
	"time"
)

// Signal is one weighted component of a quality score. Value is expected
// on the [0,10] scale; Weight across a harvester's signals sums to 1.0.
type Signal struct {
	Name   string
	Value  float64
	Weight float64
}

// WeightedScore combines signals into a single quality score clamped to
// [0,10]. Every harvester funnels its scoring through here so the
// arithmetic lives in exactly one place.
func WeightedScore(signals []Signal) float64 {
	var score float64
	for _, s := range signals {
		score += clamp10(s.Value) * s.Weight
	}
	return clamp10(score)
}

func clamp10(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// LogScale maps an unbounded count (views, plays, followers) onto [0,10]
// using log10. scale controls how fast the score saturates: with scale 2.5
// a count of 10,000 scores 10.
func LogScale(count float64, scale float64) float64 {
	if count <= 0 {
		return 0
	}
	return clamp10(math.Log10(count+1) * scale)
}

// RecencyScore decays from 10 toward 0 as t ages, halving every halfLife.
// A zero time scores 0 (unknown age is treated as stale).
func RecencyScore(t time.Time, halfLife time.Duration) float64 {
	if t.IsZero() || halfLife <= 0 {
		return 0
	}
	age := time.Since(t)
	if age < 0 {
		age = 0
	}
	return clamp10(10 * math.Exp2(-age.Hours()/halfLife.Hours()))
}

// RatioScore maps value/max onto [0,10].
func RatioScore(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp10(value / max * 10)
}
