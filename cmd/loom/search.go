// Search command for the loom CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strandlabs/loom/pkg/types"
)

var (
	searchCollection string
	searchLimit      int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search block content",
	Long: `Search runs a full-text query over block content.

Queries are case-insensitive unless a term contains an uppercase letter, in
which case that term must match exactly.

Example:
  loom search goroutine leak
  loom search --collection col_abc "HTTP client"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "search:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		opts := types.SearchOptions{
			CollectionID: searchCollection,
			Limit:        searchLimit,
		}

		hits, err := store.SearchBlocks(query, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, "search:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			printJSON(hits)
			return nil
		}

		if len(hits) == 0 {
			fmt.Println("no matches")
			return nil
		}

		for _, hit := range hits {
			fmt.Printf("%s %s [%s] %.1f\n  %s\n", hit.CollectionID, hit.BlockID, hit.Role, hit.Score, hit.Snippet)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchCollection, "collection", "", "restrict search to one collection")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum number of hits (0 = default)")
}
