// Package levels converts between a level/progress pair and a total
// experience amount using the piecewise quadratic progression curve.
package levels

import "math"

const (
	firstBreak  = 16
	secondBreak = 31
)

// ToNext returns the experience needed to advance from level to level+1.
func ToNext(level int) int {
	switch {
	case level < 0:
		return 0
	case level < firstBreak:
		return 2*level + 7
	case level < secondBreak:
		return 5*level - 38
	default:
		return 9*level - 158
	}
}

// AtLevel returns the total experience accumulated at the start of level.
func AtLevel(level int) int {
	if level <= 0 {
		return 0
	}
	l := float64(level)
	switch {
	case level <= firstBreak:
		return level*level + 6*level
	case level <= secondBreak:
		return int(2.5*l*l - 40.5*l + 360)
	default:
		return int(4.5*l*l - 162.5*l + 2220)
	}
}

// Total returns the total experience for a level plus fractional progress
// (0 <= progress < 1) toward the next level.
func Total(level int, progress float64) int {
	if level < 0 {
		level = 0
	}
	progress = clampProgress(progress)
	return AtLevel(level) + int(math.Round(progress*float64(ToNext(level))))
}

// FromTotal is the inverse of Total.
func FromTotal(total int) (level int, progress float64) {
	if total <= 0 {
		return 0, 0
	}
	for {
		need := ToNext(level)
		if need <= 0 || total < need {
			break
		}
		total -= need
		level++
	}
	need := ToNext(level)
	if need > 0 {
		progress = float64(total) / float64(need)
	}
	return level, progress
}

func clampProgress(p float64) float64 {
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	if p >= 1 {
		return math.Nextafter(1, 0)
	}
	return p
}
