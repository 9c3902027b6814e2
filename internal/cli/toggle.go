package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:       "toggle [on|off]",
		Short:     "Set auto-save mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(config.ModeOn), string(config.ModeOff)},
		Run:       runToggle,
	}
	cmd.Flags().String("scope", "global", "Apply to global or project")

	RootCmd.AddCommand(cmd)
}

func runToggle(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")

	mode, err := config.ParseMode(args[0])
	if err != nil {
		exitErr("toggle", err)
	}

	switch scope {
	case "global":
		home, err := config.Home()
		if err != nil {
			exitErr("toggle", err)
		}
		if err := config.SaveGlobal(home, mode); err != nil {
			exitErr("toggle", err)
		}
		ok("Global auto-save set to: %s", mode)
	case "project":
		if err := config.SaveProject(workDir(), mode); err != nil {
			exitErr("toggle", err)
		}
		ok("Project auto-save set to: %s", mode)
	default:
		exitErr("toggle", fmt.Errorf("invalid scope %q: use global or project", scope))
	}
}
