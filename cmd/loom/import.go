// Import command for the loom CLI.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strandlabs/loom/pkg/types"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a JSON export document into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitUserError)
		}

		var doc types.ExportDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			fmt.Fprintf(os.Stderr, "import: %s is not a valid export document: %s\n", path, err)
			os.Exit(exitUserError)
		}

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		summary, err := store.ImportAll(&doc)
		if err != nil {
			if errors.Is(err, types.ErrInvalidExport) {
				fmt.Fprintln(os.Stderr, "import:", err)
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			printJSON(summary)
			return nil
		}

		fmt.Printf("Records:   %d imported, %d skipped, %d duplicates, %d conflicts\n",
			summary.Records.Imported, summary.Records.Skipped, summary.Records.Duplicates, summary.Records.Conflicts)
		fmt.Printf("Relations: %d imported, %d skipped, %d duplicates, %d conflicts, %d missing endpoints\n",
			summary.Relations.Imported, summary.Relations.Skipped, summary.Relations.Duplicates,
			summary.Relations.Conflicts, summary.Relations.MissingEndpoints)
		return nil
	},
}
