package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/model"
	"github.com/rcliao/vector-memory/internal/scaffold"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB000"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

var rule = strings.Repeat("━", 40)

func header(title string) {
	fmt.Println(rule)
	fmt.Println(titleStyle.Render(title))
	fmt.Println(rule)
}

func ok(format string, args ...any) {
	fmt.Println(okStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

func info(format string, args ...any) {
	fmt.Println(warnStyle.Render("ℹ " + fmt.Sprintf(format, args...)))
}

// truncate cuts s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func created(d model.Document, n int) string {
	if c := d.Metadata.CreatedAt; c != "" {
		return c[:min(n, len(c))]
	}
	return "Unknown"
}

// printDocs lists docs as "[i] date | text". With details set, every field
// is shown.
func printDocs(docs []model.Document, width int, details bool) {
	for i, d := range docs {
		if !details {
			fmt.Printf("[%d] %s | %s\n", i+1, created(d, 10), truncate(firstLine(d.Text), width))
			continue
		}
		fmt.Printf("\n[%d] ID: %s\n", i+1, d.ID)
		fmt.Printf("    Created: %s\n", created(d, 19))
		fmt.Printf("    Text: %s\n", d.Text)
		meta := d.Metadata.ToMap()
		delete(meta, model.KeyCreatedAt)
		if len(meta) == 0 {
			continue
		}
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("    Metadata:")
		for _, k := range keys {
			fmt.Printf("      %s: %v\n", k, meta[k])
		}
	}
}

func printMatch(i int, m model.Match, label string) {
	fmt.Printf("\n%s\n", titleStyle.Render(fmt.Sprintf("[%d] Similarity: %.2f%%%s", i, m.Similarity*100, label)))
	fmt.Println(m.Text)
	if m.Metadata.CreatedAt != "" {
		fmt.Println(dimStyle.Render("   Saved: " + m.Metadata.CreatedAt[:min(10, len(m.Metadata.CreatedAt))]))
	}
	if tags := m.Metadata.Tags(); len(tags) > 0 {
		fmt.Println(dimStyle.Render("   Tags: " + strings.Join(tags, ", ")))
	}
}

func printChanges(changes []scaffold.Change) {
	for _, c := range changes {
		switch c.Op {
		case scaffold.OpCreated, scaffold.OpUpdated, scaffold.OpRemoved, scaffold.OpBackedUp:
			ok("%s", c)
		default:
			info("%s", c)
		}
	}
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// readText joins args, or reads piped stdin when there are none.
func readText(args []string) (string, error) {
	text := strings.Join(args, " ")
	if text == "" && !stdinIsTerminal() {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("text is required (positional arg or stdin)")
	}
	return text, nil
}

// confirm asks on the terminal. Without a terminal it refuses, so scripts
// must pass --yes.
func confirm(cmd *cobra.Command, prompt string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	if !stdinIsTerminal() {
		exitErr("confirm", errors.New("stdin is not a terminal, pass --yes to delete"))
	}
	fmt.Printf("%s [y/N]: ", prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
