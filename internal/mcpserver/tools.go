package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the RugSentry MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListActiveWarnings = mcp.NewTool("list_active_warnings",
	mcp.WithDescription(
		"List active rug-pull warnings on the RugSentry platform, highest risk first. "+
			"Each warning carries a 0-100 risk score, a risk level, and the tactics it covers. "+
			"Use this to see what the community is currently worried about."),
	mcp.WithString("network",
		mcp.Description("Filter by chain: 'ethereum', 'bsc', 'solana', 'polygon', or 'other'"),
		mcp.Enum("ethereum", "bsc", "solana", "polygon", "other")),
	mcp.WithString("risk_level",
		mcp.Description("Filter by risk level"),
		mcp.Enum("low", "medium", "high", "critical")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of warnings to return (default 20)")),
)

var ToolGetWarning = mcp.NewTool("get_warning",
	mcp.WithDescription(
		"Fetch one warning by ID with its full evidence: on-chain findings, market "+
			"data (liquidity and price changes), social signals, and the AI risk assessment."),
	mcp.WithString("warning_id",
		mcp.Required(),
		mcp.Description("The warning ID (e.g. 'warn_...')")),
)

var ToolFindSimilarRugs = mcp.NewTool("find_similar_rugs",
	mcp.WithDescription(
		"Find confirmed past rug pulls similar to a warning or tombstone: same network, "+
			"at least one shared fraud tactic, community-verified. Most recent incidents first. "+
			"Use this to ground a suspicion in historical precedent."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("A warning ID ('warn_...') or tombstone ID ('tomb_...')")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of matches to return (default 5)")),
)

var ToolCheckContract = mcp.NewTool("check_contract",
	mcp.WithDescription(
		"Check whether a token contract already has a confirmed rug-pull record. "+
			"Returns the tombstone (tactics, estimated losses, verification status) if one exists."),
	mcp.WithString("network",
		mcp.Required(),
		mcp.Description("The chain the contract lives on"),
		mcp.Enum("ethereum", "bsc", "solana", "polygon", "other")),
	mcp.WithString("contract_address",
		mcp.Required(),
		mcp.Description("The token contract address (0x + 40 hex chars for EVM chains)")),
)

var ToolListTombstones = mcp.NewTool("list_rug_tombstones",
	mcp.WithDescription(
		"Browse the registry of confirmed rug pulls, most recent incident first. "+
			"Each record names the fraud tactics used and the estimated losses."),
	mcp.WithString("network",
		mcp.Description("Filter by chain"),
		mcp.Enum("ethereum", "bsc", "solana", "polygon", "other")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of records to return (default 20)")),
)

var ToolScanMessage = mcp.NewTool("scan_message",
	mcp.WithDescription(
		"Run RugSentry's message risk scan on arbitrary text: flags rug-pull keywords, "+
			"scores credibility (evidence like links and contract addresses raises it, "+
			"alarmist keyword stuffing lowers it), and classifies sentiment. "+
			"This runs locally and does not store anything."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The message text to scan")),
)
