package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/config"
	"github.com/rcliao/vector-memory/internal/mcptools"
)

func init() {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the vmem tools over MCP stdio",
		Args:  cobra.NoArgs,
		Run:   runMCP,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the vmem version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vmem %s\n", Version)
		},
	}

	RootCmd.AddCommand(mcpCmd, versionCmd)
}

func runMCP(cmd *cobra.Command, args []string) {
	svc := openMemory()
	// Re-read on every call so toggles take effect without a restart.
	mode := func() config.Mode { return loadToggle().Effective() }
	if err := mcptools.Serve(mcptools.NewServer(svc, mode, Version)); err != nil {
		exitErr("mcp", err)
	}
}
