package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huangsam/shiftpoint/core"
	"github.com/huangsam/shiftpoint/core/dispatch"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	disp    *dispatch.Dispatcher
}

// rankedTable is one enriched ranking as returned by rank_events.
type rankedTable struct {
	Metric  string                `json:"metric"`
	Horizon schema.Horizon        `json:"horizon"`
	Impacts []schema.RankedImpact `json:"impacts"`
}

func (h *toolHandler) horizon(request mcp.CallToolRequest) schema.Horizon {
	if v := request.GetInt("horizon", 0); v > 0 {
		return schema.Horizon(v)
	}
	return h.baseCfg.Horizon
}

func (h *toolHandler) handleSegment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reports, err := core.BuildBreakpoints(ctx, h.disp, request.GetString("metric", ""), request.GetInt("k", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("segmentation failed: %v", err)), nil
	}
	return jsonResult(reports)
}

func (h *toolHandler) handleRankEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hz := h.horizon(request)
	if !hz.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid horizon %d: must be 7 or 14", hz)), nil
	}

	rankings, err := core.BuildRankings(ctx, h.disp, request.GetString("metric", ""), hz)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ranking failed: %v", err)), nil
	}

	tables := make([]rankedTable, len(rankings))
	for i, r := range rankings {
		tables[i] = rankedTable{Metric: r.Metric, Horizon: r.Horizon, Impacts: schema.EnrichImpacts(r.Impacts)}
	}
	return jsonResult(tables)
}

func (h *toolHandler) handleImpactBefore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := contract.ParseDateFlag("date", request.GetString("date", ""))
	if err == nil && date.IsZero() {
		err = errors.New("--date is required")
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid impact parameters: %v", err)), nil
	}

	impacts, err := core.BuildImpacts(ctx, h.disp, request.GetString("metric", ""), date, h.horizon(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("impact lookup failed: %v", err)), nil
	}
	return jsonResult(impacts)
}

func (h *toolHandler) handleDispatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := contract.ParseDateFlag("date", request.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid dispatch parameters: %v", err)), nil
	}

	req := dispatch.Resolve(dispatch.Inputs{
		Fired:  []schema.Trigger{schema.ParseTrigger(request.GetString("trigger", ""))},
		Date:   date,
		Clicks: request.GetInt("clicks", 0),
		Metric: request.GetString("metric", ""),
		K:      request.GetInt("k", 0),
	})
	result, err := h.disp.Dispatch(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("dispatch failed: %v", err)), nil
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
