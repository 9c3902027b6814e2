package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/model"
)

func init() {
	queryCmd := &cobra.Command{
		Use:   "query [query]",
		Short: "Search one collection",
		Args:  cobra.MinimumNArgs(1),
		Run:   runQuery,
	}
	queryCmd.Flags().Int("top-k", 5, "Number of results")
	queryCmd.Flags().Bool("json", false, "Output as JSON")
	addGlobalFlag(queryCmd, "Search")

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search both project and global collections",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}
	searchCmd.Flags().Int("top-k", 3, "Number of results across both collections")
	searchCmd.Flags().Bool("json", false, "Output as JSON")

	RootCmd.AddCommand(queryCmd, searchCmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top-k")
	asJSON, _ := cmd.Flags().GetBool("json")
	global, _ := cmd.Flags().GetBool("global")

	res, err := openMemory().Query(cmd.Context(), model.ScopeFor(global), strings.Join(args, " "), topK)
	if err != nil {
		exitErr("querying", err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(res.Matches, "", "  ")
		fmt.Println(string(b))
		return
	}
	if len(res.Matches) == 0 {
		fmt.Printf("No relevant results found in %s\n", res.Collection)
		return
	}
	header("📚 Results from " + res.Collection + ":")
	for i, m := range res.Matches {
		printMatch(i+1, m, "")
	}
}

func runSearch(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top-k")
	asJSON, _ := cmd.Flags().GetBool("json")

	matches, err := openMemory().Search(cmd.Context(), strings.Join(args, " "), topK)
	if err != nil {
		exitErr("searching", err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(matches, "", "  ")
		fmt.Println(string(b))
		return
	}
	if len(matches) == 0 {
		fmt.Println("No relevant results found")
		return
	}
	header("📚 Results from project + global:")
	for i, m := range matches {
		printMatch(i+1, m.Match, " ("+m.Collection+")")
	}
}
