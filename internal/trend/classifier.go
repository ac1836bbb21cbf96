package trend

import (
	"math"

	"TrendScope/internal/model"
)

// Regimes maps a minimum total score to a regime label, highest first.
var Regimes = []struct {
	MinScore float64
	Regime   model.Regime
}{
	{70, model.RegimeUptrend},
	{40, model.RegimeSideways},
}

// DefaultRegime applies to scores below every threshold.
var DefaultRegime = model.RegimeDowntrend

// Classify maps a total score to a regime and a confidence in [0, 100].
func Classify(score float64) (model.Regime, float64) {
	regime := DefaultRegime
	for _, r := range Regimes {
		if score >= r.MinScore {
			regime = r.Regime
			break
		}
	}
	return regime, confidence(regime, score)
}

func confidence(regime model.Regime, score float64) float64 {
	switch regime {
	case model.RegimeUptrend:
		return math.Min(100, 60+(score-70))
	case model.RegimeSideways:
		return 50
	default:
		return math.Max(20, score)
	}
}
