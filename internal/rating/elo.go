package rating

import (
	"math"
)

type GameResult int

const (
	Loss GameResult = 0
	Draw GameResult = 1
	Win  GameResult = 2
)

// Score returns the actual score used by both rating systems (1, 0.5 or 0).
func (r GameResult) Score() float64 {
	switch r {
	case Win:
		return 1.0
	case Draw:
		return 0.5
	default:
		return 0.0
	}
}

// Opposite returns the result the other player of the same match receives.
func (r GameResult) Opposite() GameResult {
	switch r {
	case Win:
		return Loss
	case Loss:
		return Win
	default:
		return Draw
	}
}

const (
	KFactor       = 32
	InitialRating = 1000
)

type Calculator struct {
	kFactor int
}

func NewCalculator() *Calculator {
	return &Calculator{kFactor: KFactor}
}

// CalculateElo returns the new Elo ratings of both players after a match.
// resultA is player A's result; B receives the opposite score.
func (c *Calculator) CalculateElo(ratingA, ratingB int, resultA GameResult) (int, int) {
	scoreA := resultA.Score()

	expectedA := c.calculateExpectedScore(ratingA, ratingB)
	expectedB := c.calculateExpectedScore(ratingB, ratingA)

	// R' = R + K × (S - E)
	newA := float64(ratingA) + float64(c.kFactor)*(scoreA-expectedA)
	newB := float64(ratingB) + float64(c.kFactor)*((1-scoreA)-expectedB)

	return int(math.Round(newA)), int(math.Round(newB))
}

// RatingChange returns the signed Elo change for a single player.
func (c *Calculator) RatingChange(playerRating, opponentRating int, result GameResult) int {
	expected := c.calculateExpectedScore(playerRating, opponentRating)
	return int(math.Round(float64(c.kFactor) * (result.Score() - expected)))
}

// WinProbability is the Elo expected score of player A against player B.
func (c *Calculator) WinProbability(ratingA, ratingB int) float64 {
	return c.calculateExpectedScore(ratingA, ratingB)
}

// calculateExpectedScore calculates the expected score using the Elo formula
// E = 1 / (1 + 10^((OpponentRating - PlayerRating) / 400))
func (c *Calculator) calculateExpectedScore(playerRating, opponentRating int) float64 {
	exponent := float64(opponentRating-playerRating) / 400.0
	return 1.0 / (1.0 + math.Pow(10, exponent))
}
