package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a collection as JSON",
		Long:  "Export every document of the project (or global) collection as a JSON array, newest first.",
		Args:  cobra.NoArgs,
		Run:   runExport,
	}
	addGlobalFlag(cmd, "Export")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	global, _ := cmd.Flags().GetBool("global")

	listing, err := openMemory().History(cmd.Context(), model.ScopeFor(global), 0)
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(listing.Documents, "", "  ")
	fmt.Println(string(b))
}
