package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/model"
	"github.com/rcliao/vector-memory/internal/scaffold"
)

func init() {
	initCmd := &cobra.Command{
		Use:   "init [on]",
		Short: "Initialize vmem in the current project",
		Long:  `Write .vmem.md, .vmem.yml and agent rules, and link them from the agent files. "init on" also turns auto-save on and installs the hooks.`,
		Args:  cobra.MaximumNArgs(1),
		Run:   runInit,
	}

	uninitCmd := &cobra.Command{
		Use:   "uninit",
		Short: "Remove vmem from the current project and drop its collection",
		Args:  cobra.NoArgs,
		Run:   runUninit,
	}
	uninitCmd.Flags().Bool("keep-data", false, "Keep the project collection on the gateway")
	uninitCmd.Flags().Bool("dry-run", false, "Preview without changing anything")
	uninitCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Rewrite the vmem docs to the current templates",
		Args:  cobra.NoArgs,
		Run:   runUpdate,
	}

	hooksCmd := &cobra.Command{
		Use:       "hooks [on|off|status]",
		Short:     "Manage agent hooks in .claude/settings.json",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off", "status"},
		Run:       runHooks,
	}

	RootCmd.AddCommand(initCmd, uninitCmd, updateCmd, hooksCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	on := false
	if len(args) == 1 {
		if args[0] != "on" {
			exitErr("init", fmt.Errorf("unknown mode %q: only \"on\" is accepted", args[0]))
		}
		on = true
	}

	opts := scaffold.InitOptions{On: on}
	if stdinIsTerminal() {
		opts.Choose = chooseAgentFiles
	}
	changes, err := scaffold.Init(workDir(), opts)
	printChanges(changes)
	if err != nil {
		exitErr("init", err)
	}

	fmt.Println()
	ok("vmem initialized!")
	if !on {
		fmt.Println("  Run 'vmem toggle on' to enable auto-save.")
		fmt.Println("  Or use 'vmem init on' to enable hooks.")
	}
}

func chooseAgentFiles(candidates []string) []string {
	fmt.Println("\nNo agent config files found. Which one(s) to create?")
	for i, c := range candidates {
		fmt.Printf("  %d. %s\n", i+1, c)
	}
	fmt.Print("\nSelect (e.g., 1 or 1,2,3): ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return pickAgentFiles(answer, candidates)
}

// pickAgentFiles maps a "1,2" or "1 2" answer onto candidates, skipping
// anything out of range.
func pickAgentFiles(answer string, candidates []string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(answer, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' || r == '\r' }) {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(candidates) {
			continue
		}
		out = append(out, candidates[n-1])
	}
	return out
}

func runUninit(cmd *cobra.Command, args []string) {
	keepData, _ := cmd.Flags().GetBool("keep-data")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if !keepData {
		svc := openMemory()
		collection, err := svc.Collection(model.ScopeProject)
		if err != nil {
			exitErr("uninit", err)
		}
		switch {
		case dryRun:
			info("Would drop collection %s", collection)
		case confirm(cmd, fmt.Sprintf("Drop collection %s and all its memories?", collection)):
			resp, err := svc.DropProject(cmd.Context())
			if err != nil {
				exitErr("dropping project", err)
			}
			ok("%s", resp.Message)
		default:
			fmt.Println("Aborted.")
			return
		}
	}

	changes, err := scaffold.Uninit(workDir(), dryRun)
	printChanges(changes)
	if err != nil {
		exitErr("uninit", err)
	}
	if dryRun {
		fmt.Println()
		info("Dry run - no changes made. Remove --dry-run to apply.")
	}
}

func runUpdate(cmd *cobra.Command, args []string) {
	changes, err := scaffold.Update(workDir())
	printChanges(changes)
	if err != nil {
		exitErr("update", err)
	}
	n := 0
	for _, c := range changes {
		if c.Op == scaffold.OpUpdated || c.Op == scaffold.OpCreated {
			n++
		}
	}
	fmt.Println()
	if n > 0 {
		fmt.Printf("✨ Updated %d files to vmem %s\n", n, Version)
	} else {
		fmt.Printf("✨ All files are up to date (vmem %s)\n", Version)
	}
}

func runHooks(cmd *cobra.Command, args []string) {
	dir := workDir()
	var (
		c   scaffold.Change
		err error
	)
	switch args[0] {
	case "status":
		state, err := scaffold.HooksStatus(dir)
		if err != nil {
			exitErr("hooks", err)
		}
		fmt.Printf("Hooks: %s\n", state)
		if state == scaffold.HooksEnabled {
			fmt.Printf("Config: %s\n", scaffold.SettingsFile)
		}
		return
	case "on":
		c, err = scaffold.EnableHooks(dir, false)
	case "off":
		c, err = scaffold.DisableHooks(dir)
	default:
		exitErr("hooks", fmt.Errorf("unknown action %q: use on, off or status", args[0]))
	}
	if errors.Is(err, scaffold.ErrNoClaudeDir) {
		info("%v. Run this in a Claude Code project.", err)
		return
	}
	if err != nil {
		exitErr("hooks", err)
	}
	printChanges([]scaffold.Change{c})
	if args[0] == "on" {
		fmt.Println("  Make sure hook scripts exist in ~/.vmem/")
	}
}
