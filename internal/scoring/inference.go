package scoring

import (
	"context"
	"math"
)

// Per-feature weights for the built-in model. Sums to 1.0.
const (
	weightTeam         = 0.12
	weightSocial       = 0.06
	weightPastProjects = 0.05
	weightLiquidity    = 0.15
	weightHolders      = 0.07
	weightDistribution = 0.10
	weightAudit        = 0.08
	weightContractAge  = 0.08
	weightPatterns     = 0.13
	weightMarketCap    = 0.05
	weightVolatility   = 0.06
	weightVolume       = 0.05
)

// LocalModel is the built-in Inferencer: a weighted combination of per-feature
// risk contributions. It stands in wherever no external model service is
// configured and is deterministic for a given vector.
type LocalModel struct{}

// NewLocalModel creates the built-in inference model.
func NewLocalModel() *LocalModel {
	return &LocalModel{}
}

// PredictRisk returns a probability in [0,1]. Unknown features contribute
// their weight at a neutral 0.5 so sparse vectors don't read as safe.
func (m *LocalModel) PredictRisk(_ context.Context, v FeatureVector) (float64, error) {
	p := 0.0
	p += weightTeam * boolRisk(v.TeamAnonymous, 1.0, 0.0)
	p += weightSocial * inverted(v.SocialPresence)
	p += weightPastProjects * scaledInverse(v.PastProjects, 3)
	p += weightLiquidity * inverted(v.LiquidityScore)
	p += weightHolders * scaledInverse(v.HolderCount, 1000)
	p += weightDistribution * inverted(v.DistributionEvenness)
	p += weightAudit * boolRisk(v.Audited, 0.0, 1.0)
	p += weightContractAge * scaledInverse(v.ContractAgeDays, 180)
	p += weightPatterns * saturating(v.SuspiciousPatterns, 3)
	p += weightMarketCap * scaledInverse(v.MarketCapUSD, 1_000_000)
	p += weightVolatility * direct(v.PriceVolatility)
	p += weightVolume * scaledInverse(v.TradingVolumeUSD, 100_000)

	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p, nil
}

// boolRisk maps a boolean feature to its risk contribution, 0.5 when unknown.
func boolRisk(b *bool, whenTrue, whenFalse float64) float64 {
	if b == nil {
		return 0.5
	}
	if *b {
		return whenTrue
	}
	return whenFalse
}

// direct passes a 0..1 feature through, 0.5 when unknown.
func direct(f *float64) float64 {
	if f == nil {
		return 0.5
	}
	return clamp01(*f)
}

// inverted treats a 0..1 health score as risk (1 - score), 0.5 when unknown.
func inverted(f *float64) float64 {
	if f == nil {
		return 0.5
	}
	return clamp01(1 - *f)
}

// scaledInverse maps a magnitude to risk that decays as the value approaches
// the healthy scale: value 0 → 1.0 risk, value ≥ scale → approaches 0.
func scaledInverse(f *float64, scale float64) float64 {
	if f == nil {
		return 0.5
	}
	if *f <= 0 {
		return 1.0
	}
	return clamp01(1 - math.Log1p(*f)/math.Log1p(scale))
}

// saturating maps a count to risk that saturates at the given ceiling.
func saturating(f *float64, ceiling float64) float64 {
	if f == nil {
		return 0.5
	}
	if *f <= 0 {
		return 0.0
	}
	return clamp01(*f / ceiling)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
