package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent saves, newest first",
		Args:  cobra.NoArgs,
		Run:   runHistory,
	}
	cmd.Flags().IntP("limit", "l", 10, "Number of entries")
	addGlobalFlag(cmd, "Show")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	global, _ := cmd.Flags().GetBool("global")

	listing, err := openMemory().History(cmd.Context(), model.ScopeFor(global), limit)
	if err != nil {
		exitErr("fetching history", err)
	}
	if len(listing.Documents) == 0 {
		fmt.Printf("No saves found in %s\n", listing.Collection)
		return
	}

	header(fmt.Sprintf("📜 Recent saves (%s):", listing.Collection))
	printDocs(listing.Documents, 50, verbose)
	fmt.Printf("\nTotal: %d entries\n", len(listing.Documents))
}
