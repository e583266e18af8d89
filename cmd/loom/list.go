// List command for the loom CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "list:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		collections, err := store.ListCollections(listLimit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list collections:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			printJSON(collections)
			return nil
		}

		activeID, err := store.ActiveCollectionID()
		if err != nil {
			fmt.Fprintln(os.Stderr, "read active collection:", err)
			os.Exit(exitSysError)
		}

		for _, rec := range collections {
			marker := " "
			if rec.ID == activeID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %s\n", marker, rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04"), collectionTitle(rec))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum number of collections (0 = all)")
}
