package profiles

import "github.com/shopspring/decimal"

const (
	basePointsPerActivation = 10
	pointsPerLevel          = 100
)

// Rewards is the point grant for one activation: 10 plus the whole francs saved.
// Negative savings never reduce the base grant.
func Rewards(saved decimal.Decimal) int {
	if saved.IsNegative() {
		return basePointsPerActivation
	}
	return basePointsPerActivation + int(saved.Floor().IntPart())
}

// Level maps a point total to a level, starting at 1.
func Level(points int) int {
	if points < 0 {
		points = 0
	}
	return points/pointsPerLevel + 1
}
