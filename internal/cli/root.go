// Package cli implements the vmem CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/client"
	"github.com/rcliao/vector-memory/internal/config"
	"github.com/rcliao/vector-memory/internal/memory"
	"github.com/rcliao/vector-memory/internal/observe"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

var verbose bool

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "vmem",
	Short: "Vector memory for AI agents",
	Long: `Universal vector memory for any AI agent. Saves and searches notes in a
per-project or global collection behind a storage gateway.

Examples:
  vmem save "API uses JWT authentication"
  vmem save "Docker config" --global
  vmem query "authentication method"
  vmem search "deployment"
  vmem status
  vmem toggle on`,
	SilenceUsage: true,
}

func init() {
	RootCmd.Version = Version
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show details and progress logs")
}

func exitErr(msg string, err error) {
	fmt.Fprintln(os.Stderr, errStyle.Render(fmt.Sprintf("✗ %s: %v", msg, err)))
	os.Exit(1)
}

func observer() *observe.Observer {
	return observe.New(os.Stderr, verbose)
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		exitErr("working directory", err)
	}
	return wd
}

func projectID() string {
	return config.ProjectID(workDir())
}

// openClient exits when the gateway URL or token is missing, before any
// network call is made.
func openClient() *client.Client {
	env, err := config.LoadEnv()
	if err != nil {
		exitErr("config", err)
	}
	return client.New(env.BaseURL, env.Token, client.WithVersion(Version))
}

func openMemory() *memory.Service {
	return memory.New(openClient(), projectID(), memory.WithLogger(observer().Log()))
}

func loadToggle() config.Toggle {
	home, err := config.Home()
	if err != nil {
		exitErr("config", err)
	}
	tg := config.LoadToggle(home, workDir())
	log := observer().Log()
	for _, w := range tg.Warnings {
		log.Warn().Msg(w)
	}
	return tg
}

func addGlobalFlag(cmd *cobra.Command, what string) {
	cmd.Flags().Bool("global", false, what+" the global collection (default: project)")
}
