package warning

import "time"

// OnChainUpdate carries the on-chain fields present in an incoming evidence
// fragment. Nil fields leave the stored value untouched.
type OnChainUpdate struct {
	TxHash      *string        `json:"txHash,omitempty"`
	BlockNumber *uint64        `json:"blockNumber,omitempty"`
	Timestamp   *time.Time     `json:"timestamp,omitempty"`
	Details     map[string]any `json:"details,omitempty"` // merged key-by-key
}

// MarketUpdate carries the market fields present in an incoming fragment.
type MarketUpdate struct {
	PriceChangePct     *float64   `json:"priceChangePct,omitempty"`
	VolumeChangePct    *float64   `json:"volumeChangePct,omitempty"`
	LiquidityChangePct *float64   `json:"liquidityChangePct,omitempty"`
	Timestamp          *time.Time `json:"timestamp,omitempty"`
}

// SocialUpdate carries the social fields present in an incoming fragment.
type SocialUpdate struct {
	SentimentScore *float64   `json:"sentimentScore,omitempty"`
	Volume         *int       `json:"volume,omitempty"`
	Platform       *string    `json:"platform,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// EvidenceUpdate is a partial evidence fragment from any source.
type EvidenceUpdate struct {
	OnChain *OnChainUpdate `json:"onChain,omitempty"`
	Market  *MarketUpdate  `json:"market,omitempty"`
	Social  *SocialUpdate  `json:"social,omitempty"`
}

// Empty reports whether the update carries no fragments at all.
func (u EvidenceUpdate) Empty() bool {
	return u.OnChain == nil && u.Market == nil && u.Social == nil
}

// MergeEvidence applies a partial update to existing evidence and returns the
// merged result. The merge is field-level last-writer-wins: only fields the
// fragment names are overwritten, so repeated partial updates accumulate the
// latest known value per field. Pure transform; persistence is the caller's
// concern.
func MergeEvidence(existing Evidence, incoming EvidenceUpdate) Evidence {
	merged := existing

	if incoming.OnChain != nil {
		oc := OnChainEvidence{}
		if existing.OnChain != nil {
			oc = *existing.OnChain
			oc.Details = copyDetails(existing.OnChain.Details)
		}
		if incoming.OnChain.TxHash != nil {
			oc.TxHash = *incoming.OnChain.TxHash
		}
		if incoming.OnChain.BlockNumber != nil {
			oc.BlockNumber = *incoming.OnChain.BlockNumber
		}
		if incoming.OnChain.Timestamp != nil {
			oc.Timestamp = *incoming.OnChain.Timestamp
		}
		if len(incoming.OnChain.Details) > 0 {
			if oc.Details == nil {
				oc.Details = make(map[string]any, len(incoming.OnChain.Details))
			}
			for k, v := range incoming.OnChain.Details {
				oc.Details[k] = v
			}
		}
		merged.OnChain = &oc
	}

	if incoming.Market != nil {
		m := MarketEvidence{}
		if existing.Market != nil {
			m = *existing.Market
		}
		if incoming.Market.PriceChangePct != nil {
			m.PriceChangePct = *incoming.Market.PriceChangePct
		}
		if incoming.Market.VolumeChangePct != nil {
			m.VolumeChangePct = *incoming.Market.VolumeChangePct
		}
		if incoming.Market.LiquidityChangePct != nil {
			m.LiquidityChangePct = *incoming.Market.LiquidityChangePct
		}
		if incoming.Market.Timestamp != nil {
			m.Timestamp = *incoming.Market.Timestamp
		}
		merged.Market = &m
	}

	if incoming.Social != nil {
		s := SocialEvidence{}
		if existing.Social != nil {
			s = *existing.Social
		}
		if incoming.Social.SentimentScore != nil {
			s.SentimentScore = *incoming.Social.SentimentScore
		}
		if incoming.Social.Volume != nil {
			s.Volume = *incoming.Social.Volume
		}
		if incoming.Social.Platform != nil {
			s.Platform = *incoming.Social.Platform
		}
		if incoming.Social.Timestamp != nil {
			s.Timestamp = *incoming.Social.Timestamp
		}
		merged.Social = &s
	}

	return merged
}

// LiquidityChangePct derives a percentage change between two reserve sums.
// A zero or absent prior sum derives 0 rather than dividing by zero.
func LiquidityChangePct(oldReserveSum, newReserveSum float64) float64 {
	if oldReserveSum <= 0 {
		return 0
	}
	return (newReserveSum - oldReserveSum) / oldReserveSum * 100
}

func copyDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}
