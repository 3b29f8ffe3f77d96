package warning

import "testing"

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{0, LevelLow},
		{39, LevelLow},
		{40, LevelMedium},
		{59, LevelMedium},
		{60, LevelHigh},
		{79, LevelHigh},
		{80, LevelCritical},
		{100, LevelCritical},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusActive.Terminal() {
		t.Error("active must not be terminal")
	}
	if !StatusResolved.Terminal() {
		t.Error("resolved must be terminal")
	}
	if !StatusFalseAlarm.Terminal() {
		t.Error("false_alarm must be terminal")
	}
}

func TestNetworkValid(t *testing.T) {
	for _, n := range []Network{NetworkEthereum, NetworkBSC, NetworkSolana, NetworkPolygon, NetworkOther} {
		if !n.Valid() {
			t.Errorf("expected %s to be valid", n)
		}
	}
	if Network("tron").Valid() {
		t.Error("unknown network must be invalid")
	}
}

func TestRiskTypeValid(t *testing.T) {
	if !RiskLiquidityReduction.Valid() || !RiskHoneypot.Valid() {
		t.Error("known risk types must be valid")
	}
	if RiskType("astrology").Valid() {
		t.Error("unknown risk type must be invalid")
	}
}

func TestHasRiskType(t *testing.T) {
	w := &WarningSign{RiskTypes: []RiskType{RiskTeamDump, RiskLiquidityReduction}}
	if !w.HasRiskType(RiskLiquidityReduction) {
		t.Error("expected liquidity_reduction tag")
	}
	if w.HasRiskType(RiskHoneypot) {
		t.Error("did not expect honeypot tag")
	}
}
