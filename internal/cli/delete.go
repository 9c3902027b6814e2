package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/memory"
	"github.com/rcliao/vector-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "delete [compact] [index]",
		Short: "Delete entries or compacts",
		Long: `Delete by index, age or duplication.

  vmem delete 3                  history entry 3 (1 = newest)
  vmem delete --days 30          entries older than 30 days
  vmem delete --dupes            entries with identical text, keeping the newest
  vmem delete compact 2          compact 2 (1 = newest)
  vmem delete compact --all      every compact
  vmem delete compact --days 7   compacts older than 7 days

--days and --dupes can be combined; the union is deleted.`,
		Args: cobra.MaximumNArgs(2),
		Run:  runDelete,
	}
	cmd.Flags().Int("days", 0, "Delete entries older than N days")
	cmd.Flags().Bool("dupes", false, "Delete entries with identical text")
	cmd.Flags().Bool("all", false, "With compact: delete every compact")
	cmd.Flags().Bool("dry-run", false, "Preview without deleting")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	addGlobalFlag(cmd, "Delete from")

	RootCmd.AddCommand(cmd)
}

// deleteTarget is a parsed delete invocation.
type deleteTarget struct {
	Compact bool
	// Index is 1-based; 0 means no index was given.
	Index int
	All   bool
	Days  int
	Dupes bool
}

func parseDeleteTarget(args []string, all bool, days int, dupes bool) (deleteTarget, error) {
	t := deleteTarget{All: all, Days: days, Dupes: dupes}
	if days < 0 {
		return t, fmt.Errorf("--days must be positive, got %d", days)
	}
	if len(args) > 0 && args[0] == "compact" {
		t.Compact = true
		args = args[1:]
	}
	if len(args) > 1 {
		return t, fmt.Errorf("unexpected argument %q", args[1])
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return t, fmt.Errorf("%w %q", memory.ErrInvalidIndex, args[0])
		}
		if n < 1 {
			return t, fmt.Errorf("%w %d: indexes start at 1", memory.ErrInvalidIndex, n)
		}
		if all || days > 0 || dupes {
			return t, errors.New("an index cannot be combined with --all, --days or --dupes")
		}
		t.Index = n
		return t, nil
	}

	if t.Compact {
		switch {
		case dupes:
			return t, errors.New("--dupes does not apply to compacts")
		case all && days > 0:
			return t, errors.New("use either --all or --days")
		case !all && days == 0:
			return t, errors.New("specify an index, --all or --days")
		}
		return t, nil
	}
	if all {
		return t, errors.New("--all only applies to compacts: vmem delete compact --all")
	}
	if days == 0 && !dupes {
		return t, errors.New("specify an index, --days or --dupes")
	}
	return t, nil
}

func runDelete(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")
	days, _ := cmd.Flags().GetInt("days")
	dupes, _ := cmd.Flags().GetBool("dupes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	global, _ := cmd.Flags().GetBool("global")

	target, err := parseDeleteTarget(args, all, days, dupes)
	if err != nil {
		exitErr("delete", err)
	}

	svc := openMemory()
	scope := model.ScopeFor(global)
	plan, err := planDelete(cmd.Context(), svc, scope, target)
	if err != nil {
		if errors.Is(err, memory.ErrInvalidIndex) {
			exitErr("delete", err)
		}
		exitErr("fetching documents", err)
	}

	what := "entries"
	if target.Compact {
		what = "compacts"
	}
	fmt.Printf("Scanned %d %s in %s\n", plan.Scanned, what, plan.Collection)
	if plan.Reordered {
		info("Listing was not newest-first; sorted by created_at before picking duplicates")
	}
	if len(plan.Delete) == 0 {
		ok("Nothing to delete in %s", plan.Collection)
		return
	}

	prefix := ""
	if dryRun {
		prefix = "[DRY RUN] "
	}
	header(fmt.Sprintf("🗑️  %sDeleting from %s:", prefix, plan.Collection))
	printDocs(plan.Delete, 40, verbose)
	fmt.Printf("\nTotal to delete: %d\n", len(plan.Delete))

	if dryRun {
		fmt.Println()
		info("Dry run - no changes made. Remove --dry-run to delete.")
		return
	}
	if !confirm(cmd, fmt.Sprintf("Delete %d %s?", len(plan.Delete), what)) {
		fmt.Println("Aborted.")
		return
	}

	resp, err := svc.ApplySweep(cmd.Context(), plan)
	if err != nil {
		exitErr("deleting", err)
	}
	fmt.Println()
	ok("Deleted %d %s", resp.DeletedCount, what)
}

func planDelete(ctx context.Context, svc *memory.Service, scope model.Scope, t deleteTarget) (*memory.SweepPlan, error) {
	if t.Index > 0 {
		var (
			listing *memory.Listing
			err     error
		)
		if t.Compact {
			listing, err = svc.Compacts(ctx, scope)
		} else {
			listing, err = svc.History(ctx, scope, 0)
		}
		if err != nil {
			return nil, err
		}
		d, err := memory.Pick(listing.Documents, t.Index)
		if err != nil {
			return nil, err
		}
		return &memory.SweepPlan{
			Scope:      scope,
			Collection: listing.Collection,
			Scanned:    len(listing.Documents),
			Delete:     []model.Document{d},
		}, nil
	}
	if t.Compact {
		return svc.PlanCompactSweep(ctx, scope, memory.CompactSweepOptions{All: t.All, OlderThanDays: t.Days})
	}
	return svc.PlanSweep(ctx, scope, memory.SweepOptions{OlderThanDays: t.Days, Duplicates: t.Dupes})
}
