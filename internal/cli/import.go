package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import documents from JSON",
		Long:  "Import documents from JSON on stdin. Expects the format produced by export. Documents get new ids and timestamps.",
		Args:  cobra.NoArgs,
		Run:   runImport,
	}
	addGlobalFlag(cmd, "Import into")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	global, _ := cmd.Flags().GetBool("global")

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var docs []model.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		exitErr("parse json", err)
	}

	imported, err := openMemory().Import(cmd.Context(), model.ScopeFor(global), docs)
	if err != nil {
		exitErr("import", fmt.Errorf("after %d documents: %w", imported, err))
	}
	ok("Imported %d documents", imported)
}
