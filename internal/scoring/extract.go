package scoring

// EvidenceSnapshot is the scorer's view of a warning's merged evidence.
// The on-chain details map is the extension point: ingesting callers and the
// chain provider both write well-known keys into it, and extraction reads
// whichever are present.
type EvidenceSnapshot struct {
	OnChainDetails     map[string]any
	LiquidityChangePct *float64
	PriceChangePct     *float64
	SocialSentiment    *float64
	SocialVolume       *int
}

// Detail keys recognized by ExtractFeatures.
const (
	DetailTeamAnonymous      = "team_anonymous"
	DetailSocialPresence     = "social_presence"
	DetailPastProjects       = "past_projects"
	DetailHolderCount        = "holder_count"
	DetailDistribution       = "distribution_evenness"
	DetailAudited            = "audited"
	DetailContractAgeDays    = "contract_age_days"
	DetailSuspiciousPatterns = "suspicious_patterns"
	DetailMarketCapUSD       = "market_cap_usd"
	DetailTradingVolumeUSD   = "trading_volume_usd"
)

// ExtractFeatures assembles the fixed-order feature vector from merged
// evidence. Indicators with no source stay nil and surface as lower
// confidence rather than a guessed value.
func ExtractFeatures(s EvidenceSnapshot) FeatureVector {
	v := FeatureVector{
		TeamAnonymous:        detailBool(s.OnChainDetails, DetailTeamAnonymous),
		SocialPresence:       detailFloat(s.OnChainDetails, DetailSocialPresence),
		PastProjects:         detailFloat(s.OnChainDetails, DetailPastProjects),
		HolderCount:          detailFloat(s.OnChainDetails, DetailHolderCount),
		DistributionEvenness: detailFloat(s.OnChainDetails, DetailDistribution),
		Audited:              detailBool(s.OnChainDetails, DetailAudited),
		ContractAgeDays:      detailFloat(s.OnChainDetails, DetailContractAgeDays),
		SuspiciousPatterns:   detailFloat(s.OnChainDetails, DetailSuspiciousPatterns),
		MarketCapUSD:         detailFloat(s.OnChainDetails, DetailMarketCapUSD),
		TradingVolumeUSD:     detailFloat(s.OnChainDetails, DetailTradingVolumeUSD),
	}

	// Liquidity health: a -60% reserve drop reads as 0.4, a flat pool as 1.0.
	if s.LiquidityChangePct != nil {
		v.LiquidityScore = Float(clamp01(1 + *s.LiquidityChangePct/100))
	}
	if s.PriceChangePct != nil {
		v.PriceVolatility = Float(clamp01(abs(*s.PriceChangePct) / 100))
	}
	// Social presence from chatter volume when no explicit presence score.
	if v.SocialPresence == nil && s.SocialVolume != nil {
		v.SocialPresence = Float(clamp01(float64(*s.SocialVolume) / 1000))
	}
	// Negative community sentiment discounts the presence signal: panic
	// chatter is not the organic activity a healthy presence score implies.
	// Sentiment runs -1..1; at -1 the presence signal is fully discounted.
	if v.SocialPresence != nil && s.SocialSentiment != nil && *s.SocialSentiment < 0 {
		v.SocialPresence = Float(clamp01(*v.SocialPresence * (1 + *s.SocialSentiment)))
	}
	return v
}

func detailBool(details map[string]any, key string) *bool {
	if details == nil {
		return nil
	}
	if b, ok := details[key].(bool); ok {
		return Bool(b)
	}
	return nil
}

func detailFloat(details map[string]any, key string) *float64 {
	if details == nil {
		return nil
	}
	switch n := details[key].(type) {
	case float64:
		return Float(n)
	case int:
		return Float(float64(n))
	case int64:
		return Float(float64(n))
	}
	return nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
