// Package warning implements the risk-warning lifecycle engine.
//
// A warning tracks a suspected rug pull for one project/contract: merged
// on-chain, market, and social evidence, a derived AI risk assessment, and a
// one-way status lifecycle (active → resolved | false_alarm). Mutations are
// serialized per warning so background monitoring ticks and user-initiated
// updates never silently drop evidence.
package warning

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no warning exists for an id.
	ErrNotFound = errors.New("warning not found")
	// ErrInvalidTransition is returned when a status change is attempted
	// out of a terminal state.
	ErrInvalidTransition = errors.New("invalid warning status transition")
)

// Network identifies the chain a project lives on.
type Network string

const (
	NetworkEthereum Network = "ethereum"
	NetworkBSC      Network = "bsc"
	NetworkSolana   Network = "solana"
	NetworkPolygon  Network = "polygon"
	NetworkOther    Network = "other"
)

// Valid reports whether n is a known network.
func (n Network) Valid() bool {
	switch n {
	case NetworkEthereum, NetworkBSC, NetworkSolana, NetworkPolygon, NetworkOther:
		return true
	}
	return false
}

// RiskType tags the tactic a warning covers. Non-exclusive.
type RiskType string

const (
	RiskLiquidityReduction RiskType = "liquidity_reduction"
	RiskHoneypot           RiskType = "honeypot"
	RiskMintAuthority      RiskType = "mint_authority"
	RiskTeamDump           RiskType = "team_dump"
	RiskSocialExit         RiskType = "social_exit"
	RiskProxyUpgrade       RiskType = "proxy_upgrade"
	RiskConcentration      RiskType = "ownership_concentration"
	RiskOther              RiskType = "other"
)

// Valid reports whether t is a known risk type.
func (t RiskType) Valid() bool {
	switch t {
	case RiskLiquidityReduction, RiskHoneypot, RiskMintAuthority, RiskTeamDump,
		RiskSocialExit, RiskProxyUpgrade, RiskConcentration, RiskOther:
		return true
	}
	return false
}

// RiskLevel is the tier derived from the risk score. Never set by clients.
type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

// LevelForScore maps a risk score to its tier:
// ≥80 critical, ≥60 high, ≥40 medium, else low.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Status is the lifecycle state of a warning.
type Status string

const (
	StatusActive     Status = "active"
	StatusResolved   Status = "resolved"
	StatusFalseAlarm Status = "false_alarm"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFalseAlarm
}

// OnChainEvidence holds transaction-level facts.
type OnChainEvidence struct {
	TxHash      string         `json:"txHash,omitempty"`
	BlockNumber uint64         `json:"blockNumber,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
}

// MarketEvidence holds price/volume/liquidity movement facts.
type MarketEvidence struct {
	PriceChangePct     float64   `json:"priceChangePct"`
	VolumeChangePct    float64   `json:"volumeChangePct"`
	LiquidityChangePct float64   `json:"liquidityChangePct"`
	Timestamp          time.Time `json:"timestamp"`
}

// SocialEvidence holds community chatter facts.
type SocialEvidence struct {
	SentimentScore float64   `json:"sentimentScore"`
	Volume         int       `json:"volume"`
	Platform       string    `json:"platform,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Evidence is the composite of the three independently-updatable sub-records.
// Sub-records are nil until first populated.
type Evidence struct {
	OnChain *OnChainEvidence `json:"onChain,omitempty"`
	Market  *MarketEvidence  `json:"market,omitempty"`
	Social  *SocialEvidence  `json:"social,omitempty"`
}

// AIAnalysis is the latest scoring pass attached to a warning.
type AIAnalysis struct {
	RiskScore  int       `json:"riskScore"`  // 0..100
	Confidence int       `json:"confidence"` // 0..100
	Factors    []string  `json:"factors"`
	Timestamp  time.Time `json:"timestamp"`
}

// NotificationRecord is one append-only fan-out entry.
type NotificationRecord struct {
	Channel        string    `json:"channel"`
	Timestamp      time.Time `json:"timestamp"`
	RecipientCount int       `json:"recipientCount"`
}

// ResolutionDetails is present exactly when the warning is terminal.
type ResolutionDetails struct {
	ResolvedAt time.Time `json:"resolvedAt"`
	ResolvedBy string    `json:"resolvedBy"`
	Resolution string    `json:"resolution"`
}

// WarningSign is the aggregate root of the engine.
type WarningSign struct {
	ID              string   `json:"id"`
	ProjectName     string   `json:"projectName"`
	TokenSymbol     string   `json:"tokenSymbol"`
	Network         Network  `json:"network"`
	ContractAddress string   `json:"contractAddress"`
	PairAddress     string   `json:"pairAddress,omitempty"` // liquidity pool, if known

	RiskTypes   []RiskType `json:"riskTypes"`
	RiskLevel   RiskLevel  `json:"riskLevel"` // derived from AIAnalysis.RiskScore
	Description string     `json:"description"`

	Evidence   Evidence   `json:"evidence"`
	AIAnalysis AIAnalysis `json:"aiAnalysis"`

	Status            Status               `json:"status"`
	NotificationsSent []NotificationRecord `json:"notificationsSent,omitempty"`
	VerifiedBy        []string             `json:"verifiedBy,omitempty"`
	Resolution        *ResolutionDetails   `json:"resolutionDetails,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasRiskType reports whether the warning carries the given tag.
func (w *WarningSign) HasRiskType(t RiskType) bool {
	for _, rt := range w.RiskTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// Store persists warnings.
type Store interface {
	Create(ctx context.Context, w *WarningSign) error
	Get(ctx context.Context, id string) (*WarningSign, error)
	Update(ctx context.Context, w *WarningSign) error
	Delete(ctx context.Context, id string) error

	// ListActive returns active warnings ordered by risk score descending.
	ListActive(ctx context.Context, limit int) ([]*WarningSign, error)
	// ListByNetwork returns warnings on a network ordered by risk score descending.
	ListByNetwork(ctx context.Context, network Network, limit int) ([]*WarningSign, error)
	// ListByRiskLevel returns warnings at a tier ordered by risk score descending.
	ListByRiskLevel(ctx context.Context, level RiskLevel, limit int) ([]*WarningSign, error)
	// ListRelated returns resolved warnings on the same network sharing at
	// least one risk tag, most recently resolved first.
	ListRelated(ctx context.Context, network Network, tags []RiskType, limit int) ([]*WarningSign, error)
}
