// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"
	"fmt"

	"github.com/huangsam/shiftpoint/core"
	"github.com/huangsam/shiftpoint/core/dispatch"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer registers the shiftpoint tools over an already loaded dataset without starting it.
func NewMCPServer(baseCfg *contract.Config, disp *dispatch.Dispatcher) *server.MCPServer {
	s := server.NewMCPServer(
		"Shiftpoint Event Impact Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		disp:    disp,
	}

	s.AddTool(mcp.NewTool("segment",
		mcp.WithDescription("Split each metric into k+1 segments and list the change points with their event."),
		mcp.WithString("metric", mcp.Description("Metric name (all metrics if not specified).")),
		mcp.WithNumber("k", mcp.Description("Number of change points. Defaults to one per distinct event date.")),
	), h.handleSegment)

	s.AddTool(mcp.NewTool("rank_events",
		mcp.WithDescription("Rank events by the forecast deviation at their first change point."),
		mcp.WithString("metric", mcp.Description("Metric name (all metrics if not specified).")),
		mcp.WithNumber("horizon", mcp.Description("Forecast horizon in days (7 or 14).")),
	), h.handleRankEvents)

	s.AddTool(mcp.NewTool("impact_before",
		mcp.WithDescription("Find the latest event impact on or before a date."),
		mcp.WithString("date", mcp.Description("Calendar date as YYYY-MM-DD."), mcp.Required()),
		mcp.WithString("metric", mcp.Description("Metric name (all metrics if not specified).")),
		mcp.WithNumber("horizon", mcp.Description("Forecast horizon in days (7 or 14).")),
	), h.handleImpactBefore)

	s.AddTool(mcp.NewTool("dispatch",
		mcp.WithDescription("Run the dashboard pipeline selected by a trigger and return charts and tables."),
		mcp.WithString("trigger", mcp.Description("Control that fired."), mcp.Required(),
			mcp.Enum(string(schema.DateSelectedTrigger), string(schema.RecomputeRankedTrigger), string(schema.ChangePointCountChangedTrigger), string(schema.NoTrigger))),
		mcp.WithString("date", mcp.Description("Selected date as YYYY-MM-DD.")),
		mcp.WithNumber("clicks", mcp.Description("Click count of the ranking control.")),
		mcp.WithString("metric", mcp.Description("Metric whose change point count changed.")),
		mcp.WithNumber("k", mcp.Description("New change point count.")),
	), h.handleDispatch)

	return s
}

// StartMCPServer loads the configured dataset and serves the tools over stdio.
func StartMCPServer(ctx context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	disp, err := core.PrepareDispatcher(core.WithSuppressHeader(ctx), baseCfg, mgr)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	return server.ServeStdio(NewMCPServer(baseCfg, disp))
}
