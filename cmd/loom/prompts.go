// Saved system prompt commands for the loom CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage saved system prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved system prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "prompts:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		prompts, err := store.SavedSystemPrompts()
		if err != nil {
			fmt.Fprintln(os.Stderr, "list prompts:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			printJSON(prompts)
			return nil
		}

		for _, rec := range prompts {
			payload, err := rec.BlockPayload()
			if err != nil {
				fmt.Fprintf(os.Stderr, "skip %s: %s\n", rec.ID, err)
				continue
			}
			fmt.Printf("%s  %s\n", rec.ID, payload.Content)
		}
		return nil
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <block-id>",
	Short: "Delete a saved system prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blockID := args[0]

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "prompts:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		deleted, err := store.DeleteSavedSystemPromptBlock(blockID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "delete prompt:", err)
			os.Exit(exitSysError)
		}
		if !deleted {
			fmt.Fprintf(os.Stderr, "%s is not a deletable saved system prompt\n", blockID)
			os.Exit(exitUserError)
		}

		fmt.Printf("Deleted prompt %s\n", blockID)
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsDeleteCmd)
}
