// Show command for the loom CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [collection-id]",
	Short: "Show a collection's blocks in transcript order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		explicit := ""
		if len(args) == 1 {
			explicit = args[0]
		}

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "show:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		collectionID := requireActiveCollection(store, explicit)

		blocks, err := store.CollectionBlocks(collectionID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "show collection:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			printJSON(blocks)
			return nil
		}

		for _, rec := range blocks {
			payload, err := rec.BlockPayload()
			if err != nil {
				fmt.Fprintf(os.Stderr, "skip %s: %s\n", rec.ID, err)
				continue
			}
			fmt.Printf("[%s] %s\n%s\n\n", payload.Role, rec.ID, payload.Content)
		}
		return nil
	},
}
