// Delete command for the loom CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <collection-id>",
	Short: "Delete a collection and its exclusive blocks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		collectionID := args[0]

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "delete:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		if err := store.DeleteCollection(collectionID); err != nil {
			fmt.Fprintln(os.Stderr, "delete collection:", err)
			os.Exit(exitSysError)
		}

		fmt.Printf("Deleted collection %s\n", collectionID)
		return nil
	},
}
