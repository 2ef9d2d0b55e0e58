package elo

import (
	"math"
)

const (
	// KFactor scales every rating adjustment.
	KFactor = 24.0

	// DefaultRating is the rating of an agent without history in a season.
	DefaultRating = 1500.0
)

// ExpectedScore returns player's expected score against opponent:
// E = 1 / (1 + 10^((opponent - player) / 400))
func ExpectedScore(player, opponent float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponent-player)/400.0))
}

// Update computes both players' ratings after a game. outcome is player1's
// actual score (1 win, 0.5 draw, 0 loss). The change is rounded to whole
// points and applied with opposite signs, so the update is zero-sum and does
// not depend on which side is called player1.
func Update(rating1, rating2, outcome, k float64) (float64, float64) {
	delta := Change(rating1, rating2, outcome, k)
	return rating1 + delta, rating2 - delta
}

// Change returns player1's rating change for the given outcome.
func Change(rating1, rating2, outcome, k float64) float64 {
	expected := ExpectedScore(rating1, rating2)
	return math.Round(k * (outcome - expected))
}
