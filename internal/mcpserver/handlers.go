package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rugsentry/rugsentry/internal/scoring"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// HandleListActiveWarnings lists active warnings, highest risk first.
func (h *Handlers) HandleListActiveWarnings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	network := req.GetString("network", "")
	riskLevel := req.GetString("risk_level", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListWarnings(ctx, network, riskLevel, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list warnings: %v", err)), nil
	}

	text, err := formatWarningList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse warnings: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetWarning fetches one warning with full evidence.
func (h *Handlers) HandleGetWarning(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("warning_id", "")
	if id == "" {
		return mcp.NewToolResultError("warning_id is required"), nil
	}

	raw, err := h.client.GetWarning(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get warning: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleFindSimilarRugs cross-references a warning or tombstone against
// confirmed incidents.
func (h *Handlers) HandleFindSimilarRugs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	limit := req.GetInt("limit", 5)

	var (
		raw json.RawMessage
		err error
	)
	if strings.HasPrefix(id, "tomb_") {
		raw, err = h.client.SimilarToTombstone(ctx, id, limit)
	} else {
		raw, err = h.client.SimilarToWarning(ctx, id, limit)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find similar rugs: %v", err)), nil
	}

	text, err := formatTombstoneList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse matches: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleCheckContract looks up a contract in the tombstone registry.
func (h *Handlers) HandleCheckContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	network := req.GetString("network", "")
	address := req.GetString("contract_address", "")
	if network == "" || address == "" {
		return mcp.NewToolResultError("network and contract_address are required"), nil
	}

	raw, err := h.client.LookupContract(ctx, network, address)
	if err != nil {
		if strings.Contains(err.Error(), "(404)") {
			return mcp.NewToolResultText(fmt.Sprintf(
				"No confirmed rug-pull record for %s on %s. "+
					"Absence of a tombstone is not a safety guarantee; check active warnings too.",
				address, network)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check contract: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleListTombstones browses the confirmed-incident registry.
func (h *Handlers) HandleListTombstones(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	network := req.GetString("network", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListTombstones(ctx, network, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list tombstones: %v", err)), nil
	}

	text, err := formatTombstoneList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tombstones: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleScanMessage runs the local message risk scan. No network calls.
func (h *Handlers) HandleScanMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	keywords := scoring.ScanKeywords(text)
	credibility := scoring.ScoreCredibility(text)
	sentiment := scoring.ScoreSentiment(text)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Credibility score: %d/100\n", credibility)
	fmt.Fprintf(&sb, "Sentiment: %s (%.2f)\n", sentiment.Label, sentiment.Score)
	if len(keywords) > 0 {
		fmt.Fprintf(&sb, "Flagged keywords: %s\n", strings.Join(keywords, ", "))
	} else {
		sb.WriteString("Flagged keywords: none\n")
	}
	if scoring.HasContractAddress(text) {
		sb.WriteString("Contains a contract address (evidence bonus applied)\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// --- Formatting helpers ---

type warningInfo struct {
	ID          string   `json:"id"`
	ProjectName string   `json:"projectName"`
	TokenSymbol string   `json:"tokenSymbol"`
	Network     string   `json:"network"`
	RiskTypes   []string `json:"riskTypes"`
	RiskLevel   string   `json:"riskLevel"`
	Status      string   `json:"status"`
	AIAnalysis  struct {
		RiskScore int `json:"riskScore"`
	} `json:"aiAnalysis"`
}

func formatWarningList(raw json.RawMessage) (string, error) {
	var resp struct {
		Warnings []warningInfo `json:"warnings"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Warnings) == 0 {
		return "No warnings match the filters.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d warning(s):\n\n", len(resp.Warnings))
	for _, w := range resp.Warnings {
		fmt.Fprintf(&sb, "- %s (%s) on %s — risk %d/100 [%s], status %s\n",
			w.ProjectName, w.TokenSymbol, w.Network, w.AIAnalysis.RiskScore, w.RiskLevel, w.Status)
		fmt.Fprintf(&sb, "  id: %s", w.ID)
		if len(w.RiskTypes) > 0 {
			fmt.Fprintf(&sb, ", tactics: %s", strings.Join(w.RiskTypes, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

type tombstoneInfo struct {
	ID               string    `json:"id"`
	ProjectName      string    `json:"projectName"`
	TokenSymbol      string    `json:"tokenSymbol"`
	Network          string    `json:"network"`
	FraudTactics     []string  `json:"fraudTactics"`
	EstimatedLossUSD float64   `json:"estimatedLossUsd"`
	IncidentDate     time.Time `json:"incidentDate"`
	Status           string    `json:"status"`
}

func formatTombstoneList(raw json.RawMessage) (string, error) {
	var resp struct {
		Tombstones []tombstoneInfo `json:"tombstones"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Tombstones) == 0 {
		return "No confirmed incidents match.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d confirmed incident(s):\n\n", len(resp.Tombstones))
	for _, t := range resp.Tombstones {
		fmt.Fprintf(&sb, "- %s (%s) on %s — %s, %s\n",
			t.ProjectName, t.TokenSymbol, t.Network,
			strings.Join(t.FraudTactics, "+"), t.IncidentDate.Format("2006-01-02"))
		fmt.Fprintf(&sb, "  id: %s, status: %s", t.ID, t.Status)
		if t.EstimatedLossUSD > 0 {
			fmt.Fprintf(&sb, ", est. loss: $%.0f", t.EstimatedLossUSD)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var buf strings.Builder
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return string(raw)
	}
	return buf.String()
}
