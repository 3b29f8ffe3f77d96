// Package tombstone maintains the registry of confirmed rug pulls.
//
// A tombstone is the closed-book record of an incident after the fact. Unlike
// a warning it never reopens; its only lifecycle is community verification
// (pending → verified or disputed). Verified tombstones are the ground truth
// the similarity lookups match against.
package tombstone

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no tombstone exists for an id.
	ErrNotFound = errors.New("tombstone not found")
	// ErrDuplicateContract is returned when a tombstone already exists for
	// the contract address.
	ErrDuplicateContract = errors.New("tombstone already exists for contract")
	// ErrInvalidTransition is returned when a verification transition is not allowed.
	ErrInvalidTransition = errors.New("invalid verification transition")
	// ErrValidation is wrapped around malformed input.
	ErrValidation = errors.New("invalid tombstone input")
)

// VerificationStatus is a tombstone's community verification state.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationDisputed VerificationStatus = "disputed"
)

// Valid reports whether s is a known verification status.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationDisputed:
		return true
	}
	return false
}

// Terminal reports whether the verification state can no longer change.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationVerified || s == VerificationDisputed
}

// Known fraud tactics. Free-form tactics are accepted too; these are the
// ones the UI offers.
const (
	TacticLiquidityPull   = "liquidity_pull"
	TacticMintDump        = "mint_and_dump"
	TacticHoneypot        = "honeypot"
	TacticTeamExit        = "team_exit"
	TacticContractPause   = "contract_pause"
	TacticFeeManipulation = "fee_manipulation"
)

// Tombstone is one confirmed rug pull incident.
type Tombstone struct {
	ID               string             `json:"id"`
	ProjectName      string             `json:"projectName"`
	TokenSymbol      string             `json:"tokenSymbol"`
	Network          string             `json:"network"`
	ContractAddress  string             `json:"contractAddress"`
	FraudTactics     []string           `json:"fraudTactics"`
	Description      string             `json:"description"`
	EstimatedLossUSD float64            `json:"estimatedLossUsd,omitempty"`
	VictimCount      int                `json:"victimCount,omitempty"`
	IncidentDate     time.Time          `json:"incidentDate"`
	Status           VerificationStatus `json:"status"`
	VerifiedBy       []string           `json:"verifiedBy,omitempty"`
	ReportedBy       string             `json:"reportedBy"`
	WarningID        string             `json:"warningId,omitempty"` // warning this grew out of, if any
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// HasTactic reports whether the tombstone records the given fraud tactic.
func (t *Tombstone) HasTactic(tactic string) bool {
	for _, tc := range t.FraudTactics {
		if tc == tactic {
			return true
		}
	}
	return false
}

// Store persists tombstones.
type Store interface {
	Create(ctx context.Context, t *Tombstone) error
	Get(ctx context.Context, id string) (*Tombstone, error)
	GetByContract(ctx context.Context, network, contractAddress string) (*Tombstone, error)
	Update(ctx context.Context, t *Tombstone) error
	List(ctx context.Context, limit int) ([]*Tombstone, error)
	ListByNetwork(ctx context.Context, network string, limit int) ([]*Tombstone, error)
	// ListSimilar returns verified tombstones on the same network sharing at
	// least one of the given tactics, most recent incident first.
	ListSimilar(ctx context.Context, network string, tactics []string, excludeID string, limit int) ([]*Tombstone, error)
}
