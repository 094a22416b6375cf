package cmd

import (
	"github.com/huangsam/shiftpoint/core"
	"github.com/huangsam/shiftpoint/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Shiftpoint MCP server",
	Long:  `Launch an MCP server that lets AI agents segment metrics and rank events through standard tools.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// stdio carries the protocol, so the run header stays off
		rootCtx = core.WithSuppressHeader(rootCtx)
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
