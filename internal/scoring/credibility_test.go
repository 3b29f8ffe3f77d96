package scoring

import (
	"strings"
	"testing"
)

// plainText returns n characters of keyword-free filler.
func plainText(n int) string {
	base := "the project roadmap describes staking rewards and a governance vote "
	for len(base) < n {
		base += base
	}
	return base[:n]
}

func TestScoreCredibility_Base(t *testing.T) {
	if got := ScoreCredibility("short note"); got != 50 {
		t.Errorf("expected base score 50, got %d", got)
	}
}

func TestScoreCredibility_LengthBonuses(t *testing.T) {
	if got := ScoreCredibility(plainText(120)); got != 60 {
		t.Errorf("120 chars: expected 60, got %d", got)
	}
	if got := ScoreCredibility(plainText(250)); got != 70 {
		t.Errorf("250 chars: expected 70 (both bonuses), got %d", got)
	}
}

func TestScoreCredibility_ContractAddress(t *testing.T) {
	msg := plainText(120) + " 0x00112233445566778899aabbccddeeff00112233"
	if got := ScoreCredibility(msg); got != 80 {
		t.Errorf("expected 60+20=80 with contract address, got %d", got)
	}
}

func TestScoreCredibility_URL(t *testing.T) {
	msg := "see https://etherscan.io/tx/abc"
	if got := ScoreCredibility(msg); got != 65 {
		t.Errorf("expected 50+15=65 with URL, got %d", got)
	}
}

func TestScoreCredibility_KeywordPenalty(t *testing.T) {
	// "rug pull" also matches "rugpull"? No — matching is substring on the
	// raw text: "rug pull" and "rug" both match, "rugpull" does not.
	got := ScoreCredibility("this is a rug pull scam")
	// base 50 - 5*3 ("rug pull", "rug", "scam") = 35
	if got != 35 {
		t.Errorf("expected 35, got %d", got)
	}
}

func TestScoreCredibility_ClampedToRange(t *testing.T) {
	allKeywords := strings.Join(RiskKeywords, " ")
	if got := ScoreCredibility(allKeywords); got < 0 {
		t.Errorf("score must not go below 0, got %d", got)
	}

	msg := plainText(250) +
		" https://etherscan.io/address/0x00112233445566778899aabbccddeeff00112233"
	if got := ScoreCredibility(msg); got != 100 {
		t.Errorf("expected clamp at 100, got %d", got)
	}
}

func TestScanKeywords(t *testing.T) {
	found := ScanKeywords("Looks like a HONEYPOT and an exit scam to me")
	// "scam" is a substring of "exit scam" and matches independently.
	want := map[string]bool{"scam": true, "honeypot": true, "exit scam": true}
	if len(found) != len(want) {
		t.Fatalf("expected %d keywords, got %v", len(want), found)
	}
	for _, kw := range found {
		if !want[kw] {
			t.Errorf("unexpected keyword %q", kw)
		}
	}
}

func TestHasContractAddress(t *testing.T) {
	if !HasContractAddress("token at 0x00112233445566778899aabbccddeeff00112233") {
		t.Error("expected contract address match")
	}
	if HasContractAddress("hash 0x1234") {
		t.Error("short hex string must not match")
	}
}
