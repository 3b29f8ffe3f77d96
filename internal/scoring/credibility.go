package scoring

import (
	"regexp"
	"strings"
)

// RiskKeywords are the terms the chat scanner and credibility scorer flag.
// Matching is case-insensitive substring matching on the raw text.
var RiskKeywords = []string{
	"rug pull", "rugpull", "rug", "scam", "honeypot", "exit scam",
	"pump and dump", "dump incoming", "liquidity pulled", "drained",
	"ponzi", "stolen funds",
}

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	contractPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
)

// Credibility scoring offsets. Evidence-bearing content (links, contract
// addresses) raises the score; alarmist keyword stuffing lowers it.
const (
	credibilityBase      = 50
	lengthBonus          = 10 // applied at >100 chars, again at >200
	keywordPenalty       = 5  // per matched risk keyword
	urlBonus             = 15
	contractAddressBonus = 20
)

// ScanKeywords returns the risk keywords present in text, in RiskKeywords
// order. Each keyword is reported at most once.
func ScanKeywords(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range RiskKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// HasContractAddress reports whether text contains a hex contract address
// (0x followed by 40 hex characters).
func HasContractAddress(text string) bool {
	return contractPattern.MatchString(text)
}

// ScoreCredibility rates how substantiated a message is, in [0,100].
//
// Base 50; +10 for length over 100 chars and +10 more over 200; -5 per
// matched risk keyword; +15 if a URL is present; +20 if a contract address
// is present. Clamped to [0,100].
func ScoreCredibility(text string) int {
	score := credibilityBase

	if len(text) > 100 {
		score += lengthBonus
	}
	if len(text) > 200 {
		score += lengthBonus
	}

	score -= keywordPenalty * len(ScanKeywords(text))

	if urlPattern.MatchString(text) {
		score += urlBonus
	}
	if HasContractAddress(text) {
		score += contractAddressBonus
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
