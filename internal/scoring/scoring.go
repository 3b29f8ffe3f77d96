// Package scoring derives numeric risk assessments for tracked projects.
//
// A fixed-order vector of 12 indicators spanning team, token, contract, and
// market dimensions is assembled from evidence and handed to an Inferencer
// for a raw risk probability. The scorer owns feature extraction, vector
// assembly, and post-processing; the model itself is a collaborator.
package scoring

import (
	"context"
	"math"
	"time"
)

// FeatureCount is the fixed length of the feature vector.
const FeatureCount = 12

// FeatureVector holds the 12 indicators in their fixed order. Nil means the
// indicator is unknown; unknown features lower the assessment confidence but
// never fail a scoring pass.
type FeatureVector struct {
	TeamAnonymous        *bool    `json:"teamAnonymous"`        // 1. team identity undisclosed
	SocialPresence       *float64 `json:"socialPresence"`       // 2. social footprint, 0..1
	PastProjects         *float64 `json:"pastProjects"`         // 3. prior project count
	LiquidityScore       *float64 `json:"liquidityScore"`       // 4. pool depth health, 0..1
	HolderCount          *float64 `json:"holderCount"`          // 5. unique holders
	DistributionEvenness *float64 `json:"distributionEvenness"` // 6. supply spread, 0..1
	Audited              *bool    `json:"audited"`              // 7. third-party audit on file
	ContractAgeDays      *float64 `json:"contractAgeDays"`      // 8. days since deployment
	SuspiciousPatterns   *float64 `json:"suspiciousPatterns"`   // 9. flagged bytecode patterns
	MarketCapUSD         *float64 `json:"marketCapUsd"`         // 10. market capitalization
	PriceVolatility      *float64 `json:"priceVolatility"`      // 11. recent volatility, 0..1
	TradingVolumeUSD     *float64 `json:"tradingVolumeUsd"`     // 12. 24h volume
}

// known returns the number of populated features.
func (v *FeatureVector) known() int {
	n := 0
	for _, set := range []bool{
		v.TeamAnonymous != nil,
		v.SocialPresence != nil,
		v.PastProjects != nil,
		v.LiquidityScore != nil,
		v.HolderCount != nil,
		v.DistributionEvenness != nil,
		v.Audited != nil,
		v.ContractAgeDays != nil,
		v.SuspiciousPatterns != nil,
		v.MarketCapUSD != nil,
		v.PriceVolatility != nil,
		v.TradingVolumeUSD != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Assessment is the scorer's output for one pass.
type Assessment struct {
	RiskScore  int       `json:"riskScore"`  // 0..100
	Confidence int       `json:"confidence"` // 0..100, completeness of the vector
	Factors    []string  `json:"factors"`    // ordered named risk factors
	Timestamp  time.Time `json:"timestamp"`
}

// Inferencer produces a raw risk probability from a feature vector.
// Implementations may call out to an external model service.
type Inferencer interface {
	PredictRisk(ctx context.Context, v FeatureVector) (float64, error) // probability in [0,1]
}

// Risk factor labels. Downstream consumers key off these exact strings;
// do not reword them.
const (
	FactorAnonymousTeam      = "Anonymous Team"
	FactorWeakSocialPresence = "Weak Social Presence"
	FactorNoPriorProjects    = "No Prior Projects"
	FactorLowLiquidity       = "Low Liquidity"
	FactorFewHolders         = "Few Holders"
	FactorUnevenDistribution = "Uneven Token Distribution"
	FactorUnauditedContract  = "Unaudited Contract"
	FactorNewContract        = "New Contract"
	FactorSuspiciousPatterns = "Suspicious Contract Patterns"
	FactorMicroMarketCap     = "Micro Market Cap"
	FactorHighVolatility     = "High Price Volatility"
	FactorThinVolume         = "Thin Trading Volume"
)

// Per-feature thresholds for factor labeling.
const (
	socialPresenceFloor   = 0.3
	liquidityScoreFloor   = 0.3
	holderCountFloor      = 100
	distributionFloor     = 0.4
	contractAgeFloorDays  = 30
	marketCapFloorUSD     = 100_000
	volatilityCeiling     = 0.5
	tradingVolumeFloorUSD = 10_000
)

// Scorer combines feature vectors into risk assessments.
type Scorer struct {
	model Inferencer
}

// NewScorer creates a scorer backed by the given inference model.
func NewScorer(model Inferencer) *Scorer {
	return &Scorer{model: model}
}

// Score runs one scoring pass over the vector.
//
// Confidence is the percentage of populated features, rounded to the nearest
// integer. It is a completeness proxy, not a statistical confidence interval.
func (s *Scorer) Score(ctx context.Context, v FeatureVector) (*Assessment, error) {
	p, err := s.model.PredictRisk(ctx, v)
	if err != nil {
		return nil, err
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	return &Assessment{
		RiskScore:  int(math.Round(p * 100)),
		Confidence: int(math.Round(float64(v.known()) / FeatureCount * 100)),
		Factors:    Factors(v),
		Timestamp:  time.Now(),
	}, nil
}

// Factors returns the named risk factors for a vector, in fixed feature
// order. Unknown features contribute no factor.
func Factors(v FeatureVector) []string {
	var factors []string
	if v.TeamAnonymous != nil && *v.TeamAnonymous {
		factors = append(factors, FactorAnonymousTeam)
	}
	if v.SocialPresence != nil && *v.SocialPresence < socialPresenceFloor {
		factors = append(factors, FactorWeakSocialPresence)
	}
	if v.PastProjects != nil && *v.PastProjects == 0 {
		factors = append(factors, FactorNoPriorProjects)
	}
	if v.LiquidityScore != nil && *v.LiquidityScore < liquidityScoreFloor {
		factors = append(factors, FactorLowLiquidity)
	}
	if v.HolderCount != nil && *v.HolderCount < holderCountFloor {
		factors = append(factors, FactorFewHolders)
	}
	if v.DistributionEvenness != nil && *v.DistributionEvenness < distributionFloor {
		factors = append(factors, FactorUnevenDistribution)
	}
	if v.Audited != nil && !*v.Audited {
		factors = append(factors, FactorUnauditedContract)
	}
	if v.ContractAgeDays != nil && *v.ContractAgeDays < contractAgeFloorDays {
		factors = append(factors, FactorNewContract)
	}
	if v.SuspiciousPatterns != nil && *v.SuspiciousPatterns >= 1 {
		factors = append(factors, FactorSuspiciousPatterns)
	}
	if v.MarketCapUSD != nil && *v.MarketCapUSD < marketCapFloorUSD {
		factors = append(factors, FactorMicroMarketCap)
	}
	if v.PriceVolatility != nil && *v.PriceVolatility > volatilityCeiling {
		factors = append(factors, FactorHighVolatility)
	}
	if v.TradingVolumeUSD != nil && *v.TradingVolumeUSD < tradingVolumeFloorUSD {
		factors = append(factors, FactorThinVolume)
	}
	return factors
}

// Pointer helpers for building vectors.

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }
