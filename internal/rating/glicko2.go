package rating

import "math"

const (
	GlickoScale            = 173.7178
	GlickoTau              = 0.5 // system constant; unused by the heuristic volatility step
	DefaultGlickoRating    = 1000
	DefaultRatingDeviation = 350
	DefaultVolatility      = 0.06
	MaxVolatility          = 0.5
	glickoCenter           = 1500.0
	volatilityGrowth       = 1.1
	volatilityDecay        = 0.9
)

// Glicko holds one player's Glicko-2 state on the public scale.
type Glicko struct {
	Rating     int     `json:"rating" bson:"rating"`
	Deviation  int     `json:"ratingDeviation" bson:"ratingDeviation"`
	Volatility float64 `json:"volatility" bson:"volatility"`
}

// NewGlicko returns the state assigned to a player with no history.
func NewGlicko() Glicko {
	return Glicko{
		Rating:     DefaultGlickoRating,
		Deviation:  DefaultRatingDeviation,
		Volatility: DefaultVolatility,
	}
}

// CalculateGlicko2 runs a single-game rating period for both players.
// Both transitions are derived from the same pre-match snapshot.
func (c *Calculator) CalculateGlicko2(a, b Glicko, resultA GameResult) (Glicko, Glicko) {
	return glickoUpdate(a, b, resultA.Score()), glickoUpdate(b, a, resultA.Opposite().Score())
}

func glickoUpdate(player, opponent Glicko, score float64) Glicko {
	mu := (float64(player.Rating) - glickoCenter) / GlickoScale
	phi := float64(player.Deviation) / GlickoScale
	muOpp := (float64(opponent.Rating) - glickoCenter) / GlickoScale
	phiOpp := float64(opponent.Deviation) / GlickoScale

	g := glickoG(phiOpp)
	expected := 1 / (1 + math.Exp(-g*(mu-muOpp)))
	v := 1 / (g * g * expected * (1 - expected))
	delta := v * g * (score - expected)

	// Heuristic volatility step in place of the iterative f(x)=0 solve.
	// Stored ratings depend on it, so it must not change.
	var volatility float64
	if math.Abs(delta) > phi {
		volatility = math.Min(player.Volatility*volatilityGrowth, MaxVolatility)
	} else {
		volatility = math.Max(player.Volatility*volatilityDecay, DefaultVolatility)
	}

	phiStar := math.Sqrt(phi*phi + volatility*volatility)
	newPhi := 1 / math.Sqrt(1/(phiStar*phiStar)+1/v)
	newMu := mu + newPhi*newPhi*g*(score-expected)

	return Glicko{
		Rating:     int(math.Round(newMu*GlickoScale + glickoCenter)),
		Deviation:  int(math.Round(newPhi * GlickoScale)),
		Volatility: volatility,
	}
}

// glickoG is g(φ) = 1 / sqrt(1 + 3φ²/π²).
func glickoG(phi float64) float64 {
	return 1 / math.Sqrt(1+3*phi*phi/(math.Pi*math.Pi))
}
