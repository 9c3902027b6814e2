package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/config"
	"github.com/rcliao/vector-memory/internal/memory"
	"github.com/rcliao/vector-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save [text]",
		Short: "Save information to vector storage",
		Long:  "Save a note. Text can be a positional arg or piped via stdin. Without --force the save only happens when auto-save is on.",
		Run:   runSave,
	}

	cmd.Flags().BoolP("force", "f", false, "Force save (bypass auto-save toggle)")
	cmd.Flags().String("tags", "", "Comma-separated tags")
	cmd.Flags().String("importance", "", "Importance: low, medium, high")
	cmd.Flags().String("type", model.TypeNote, "Content type (note, workflow, bug, ...)")
	cmd.Flags().String("agent", "cli", "Agent name (claude-code, codex, gemini, ...)")
	addGlobalFlag(cmd, "Save to")

	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	tagsStr, _ := cmd.Flags().GetString("tags")
	importance, _ := cmd.Flags().GetString("importance")
	typ, _ := cmd.Flags().GetString("type")
	agent, _ := cmd.Flags().GetString("agent")
	global, _ := cmd.Flags().GetBool("global")

	switch importance {
	case "", "low", "medium", "high":
	default:
		exitErr("save", fmt.Errorf("invalid importance %q: use low, medium or high", importance))
	}

	text, err := readText(args)
	if err != nil {
		exitErr("save", err)
	}

	if !force {
		if mode := loadToggle().Effective(); mode != config.ModeOn {
			fmt.Fprintf(os.Stderr, "ℹ Auto-save is %s. Use --force to save manually.\n", strings.ToUpper(string(mode)))
			return
		}
	}

	var tags []string
	for _, t := range strings.Split(tagsStr, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	resp, err := openMemory().Save(cmd.Context(), memory.SaveParams{
		Scope:      model.ScopeFor(global),
		Text:       text,
		Type:       typ,
		Agent:      agent,
		Tags:       tags,
		Importance: importance,
		Force:      force,
	})
	if err != nil {
		exitErr("saving", err)
	}
	ok("Saved to %s", resp.Collection)
	if resp.ID != "" {
		fmt.Printf("  ID: %s\n", resp.ID)
	}
}
