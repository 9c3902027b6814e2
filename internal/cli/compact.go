package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/memory"
	"github.com/rcliao/vector-memory/internal/model"
)

func init() {
	compactCmd := &cobra.Command{
		Use:   "compact [text]",
		Short: "Save a project snapshot (oldest evicted past the cap)",
		Long:  "Save a compact. Text can be a positional arg or piped via stdin.",
		Run:   runCompact,
	}
	addGlobalFlag(compactCmd, "Save to")

	retrieveCmd := &cobra.Command{
		Use:   "retrieve compact [index]",
		Short: "Show a compact (1 = newest) or list them with --all",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runRetrieve,
	}
	retrieveCmd.Flags().Bool("all", false, "List all compacts")
	addGlobalFlag(retrieveCmd, "Read from")

	RootCmd.AddCommand(compactCmd, retrieveCmd)
}

func runCompact(cmd *cobra.Command, args []string) {
	global, _ := cmd.Flags().GetBool("global")

	text, err := readText(args)
	if err != nil {
		exitErr("compact", err)
	}

	svc := openMemory()
	res, err := svc.SaveCompact(cmd.Context(), model.ScopeFor(global), text)
	if err != nil {
		exitErr("saving compact", err)
	}
	if len(res.Evicted) > 0 {
		info("Deleted %d oldest compact(s) to make room (max %d)", len(res.Evicted), svc.CompactCap())
	}
	ok("Compact saved to %s", res.Write.Collection)
	if res.Write.ID != "" {
		fmt.Printf("  ID: %s\n", res.Write.ID)
	}
	fmt.Printf("  Total compacts: %d/%d\n", res.Total, svc.CompactCap())
}

func runRetrieve(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")
	global, _ := cmd.Flags().GetBool("global")

	if args[0] != "compact" {
		exitErr("retrieve", fmt.Errorf("unknown target %q: only \"compact\" can be retrieved", args[0]))
	}
	index := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			exitErr("retrieve", fmt.Errorf("%w %q", memory.ErrInvalidIndex, args[1]))
		}
		index = n
	}

	svc := openMemory()
	scope := model.ScopeFor(global)
	listing, err := svc.Compacts(cmd.Context(), scope)
	if err != nil {
		exitErr("fetching compacts", err)
	}
	if len(listing.Documents) == 0 {
		fmt.Printf("No compacts found in %s collection\n", scope)
		return
	}

	if all {
		header(fmt.Sprintf("📦 Compacts (%s): %d/%d", scope, len(listing.Documents), svc.CompactCap()))
		printDocs(listing.Documents, 60, verbose)
		return
	}

	d, err := memory.Pick(listing.Documents, index)
	if err != nil {
		exitErr("retrieve", err)
	}
	header(fmt.Sprintf("📦 Compact [%d/%d] - %s", index, len(listing.Documents), created(d, 19)))
	fmt.Println(d.Text)
}
