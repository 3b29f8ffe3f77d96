// Package insider handles community-submitted insider tips.
//
// Tips are unverified by nature; the platform's job is to dedupe them,
// score their credibility at submission time, and surface the ones the
// community pushes back on. A tip accumulating five reports is forced
// into under_review regardless of its prior state.
package insider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no tip exists for an id.
	ErrNotFound = errors.New("insider tip not found")
	// ErrDuplicateSubmission is returned when the same tip content was
	// already submitted for the project.
	ErrDuplicateSubmission = errors.New("tip already submitted")
	// ErrInvalidTransition is returned when a review transition is not allowed.
	ErrInvalidTransition = errors.New("invalid tip transition")
	// ErrValidation is wrapped around malformed input.
	ErrValidation = errors.New("invalid tip input")
)

// ReportThreshold is the report count at which a tip is forced into review.
const ReportThreshold = 5

// TipStatus is a tip's review state.
type TipStatus string

const (
	TipPending     TipStatus = "pending"
	TipUnderReview TipStatus = "under_review"
	TipVerified    TipStatus = "verified"
	TipDismissed   TipStatus = "dismissed"
)

// Valid reports whether s is a known tip status.
func (s TipStatus) Valid() bool {
	switch s {
	case TipPending, TipUnderReview, TipVerified, TipDismissed:
		return true
	}
	return false
}

// Tip is one community-submitted insider tip.
type Tip struct {
	ID               string    `json:"id"`
	ProjectName      string    `json:"projectName"`
	Network          string    `json:"network"`
	ContractAddress  string    `json:"contractAddress,omitempty"`
	Content          string    `json:"content"`
	SubmissionHash   string    `json:"submissionHash"`
	CredibilityScore int       `json:"credibilityScore"`
	FlaggedKeywords  []string  `json:"flaggedKeywords,omitempty"`
	Status           TipStatus `json:"status"`
	ReportCount      int       `json:"reportCount"`
	SubmittedBy      string    `json:"submittedBy"`
	ReviewedBy       string    `json:"reviewedBy,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// SubmissionHash derives the dedupe key for a tip: the hash of the
// normalized content scoped to the project and network, so the same text
// reported against a different token is a distinct tip.
func SubmissionHash(projectName, network, content string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(projectName))))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(network))))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(content), " "))))
	return hex.EncodeToString(h.Sum(nil))
}

// Store persists insider tips.
type Store interface {
	Create(ctx context.Context, t *Tip) error
	Get(ctx context.Context, id string) (*Tip, error)
	GetByHash(ctx context.Context, submissionHash string) (*Tip, error)
	Update(ctx context.Context, t *Tip) error
	List(ctx context.Context, status TipStatus, limit int) ([]*Tip, error)
}
