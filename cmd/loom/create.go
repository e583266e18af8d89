// Create command for the loom CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strandlabs/loom/pkg/types"
)

var createTitle string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new collection and make it active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "create:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		payload := types.CollectionPayload{
			Title:          createTitle,
			LocalTimestamp: localTimestamp(),
		}

		rec, err := store.CreateCollection(payload)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create collection:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			printJSON(rec)
		} else {
			fmt.Printf("Created collection: %s\n", rec.ID)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createTitle, "title", "", "collection title")
}
