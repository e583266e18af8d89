// Append command for the loom CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strandlabs/loom/pkg/types"
)

var (
	appendCollection string
	appendRole       string
	appendParents    []string
	appendRecordID   string
)

// validRoles are the block roles accepted on append.
var validRoles = []string{"user", "assistant", "system"}

var appendCmd = &cobra.Command{
	Use:   "append <content>",
	Short: "Append a block to a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := args[0]

		valid := false
		for _, r := range validRoles {
			if appendRole == r {
				valid = true
				break
			}
		}
		if !valid {
			fmt.Fprintf(os.Stderr, "invalid role %q (valid: %s)\n", appendRole, strings.Join(validRoles, ", "))
			os.Exit(exitUserError)
		}

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "append:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		collectionID := requireActiveCollection(store, appendCollection)

		payload := types.BlockPayload{
			Role:           appendRole,
			Content:        content,
			LocalTimestamp: localTimestamp(),
		}
		opts := types.AppendOptions{
			ParentIDs: appendParents,
			RecordID:  appendRecordID,
		}

		rec, err := store.AppendBlock(collectionID, payload, opts)
		if err != nil {
			switch {
			case isNotFound(err):
				fmt.Fprintln(os.Stderr, "append:", err)
				os.Exit(exitUserError)
			case isConflict(err):
				fmt.Fprintln(os.Stderr, "append:", err)
				os.Exit(exitUserError)
			default:
				fmt.Fprintln(os.Stderr, "append:", err)
				os.Exit(exitSysError)
			}
		}

		if flagJSON {
			printJSON(rec)
		} else {
			fmt.Printf("Appended %s block: %s\n", appendRole, rec.ID)
		}
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendCollection, "collection", "", "collection ID (default: active collection)")
	appendCmd.Flags().StringVar(&appendRole, "role", "user", "block role (user, assistant, system)")
	appendCmd.Flags().StringArrayVar(&appendParents, "parent", nil, "parent block ID (repeatable)")
	appendCmd.Flags().StringVar(&appendRecordID, "record-id", "", "pin the block ID for idempotent replay")
}
