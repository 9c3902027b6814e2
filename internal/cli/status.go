package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/client"
	"github.com/rcliao/vector-memory/internal/config"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show auto-save mode, project and gateway connectivity",
		Args:  cobra.NoArgs,
		Run:   runStatus,
	}
	statusCmd.Flags().Bool("json", false, "Output as JSON (for scripts/hooks)")

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check gateway connectivity",
		Args:  cobra.NoArgs,
		Run:   runPing,
	}

	RootCmd.AddCommand(statusCmd, pingCmd)
}

type statusReport struct {
	Mode        config.Mode  `json:"mode"`
	GlobalMode  config.Mode  `json:"global_mode"`
	ProjectMode *config.Mode `json:"project_mode"`
	Project     string       `json:"project"`
	APIURL      string       `json:"api_url"`
	Online      bool         `json:"online"`
}

func runStatus(cmd *cobra.Command, args []string) {
	asJSON, _ := cmd.Flags().GetBool("json")

	c := openClient()
	tg := loadToggle()
	report := statusReport{
		Mode:        tg.Effective(),
		GlobalMode:  config.ResolveMode(nil, tg.Global),
		ProjectMode: tg.Project,
		Project:     projectID(),
		APIURL:      c.BaseURL(),
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()
	_, healthErr := c.Health(ctx)
	report.Online = healthErr == nil

	if asJSON {
		b, _ := json.Marshal(report)
		fmt.Println(string(b))
		return
	}

	header("📊 Vector Memory Status")
	fmt.Printf("Global Auto-save mode: %s\n", report.GlobalMode)
	if report.ProjectMode != nil {
		fmt.Printf("Project Auto-save mode: %s\n", *report.ProjectMode)
	} else {
		fmt.Println("Project Auto-save mode: not set")
	}
	fmt.Printf("Effective mode: %s\n", report.Mode)
	fmt.Printf("Current project: %s\n", report.Project)
	fmt.Printf("Vector API: %s\n", report.APIURL)

	var se *client.StatusError
	switch {
	case healthErr == nil:
		fmt.Println("Connectivity: " + okStyle.Render("✅ Online"))
	case errors.As(healthErr, &se):
		fmt.Println("Connectivity: " + warnStyle.Render(fmt.Sprintf("⚠️  Issues (Status: %d)", se.Code)))
	default:
		fmt.Println("Connectivity: " + errStyle.Render(fmt.Sprintf("❌ Unreachable (%v)", healthErr)))
	}
}

func runPing(cmd *cobra.Command, args []string) {
	c := openClient()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	start := time.Now()
	h, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("✗ Cannot reach Vector API"))
		fmt.Fprintf(os.Stderr, "  URL: %s\n", c.BaseURL())
		exitErr("ping", err)
	}
	ok("Connected to Vector API (%dms)", time.Since(start).Milliseconds())
	fmt.Printf("  URL: %s\n", c.BaseURL())
	if h.Status != "" {
		fmt.Printf("  Status: %s\n", h.Status)
	}
}
