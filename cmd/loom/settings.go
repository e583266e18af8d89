// Settings commands for the loom CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strandlabs/loom/pkg/types"
)

var settingCmd = &cobra.Command{
	Use:   "setting",
	Short: "Read and write settings",
	Long: `Setting reads and writes keys in the settings table.

Well-known keys: activeCollectionId, baseUrl, model.

Example:
  loom setting get model
  loom setting set model gpt-4.1
  loom setting unset baseUrl`,
}

var settingGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a settings value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "setting:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		var value types.SettingValue
		found, err := store.GetSetting(key, &value)
		if err != nil {
			fmt.Fprintln(os.Stderr, "get setting:", err)
			os.Exit(exitSysError)
		}
		if !found {
			fmt.Fprintf(os.Stderr, "setting %q not set\n", key)
			os.Exit(exitUserError)
		}

		fmt.Println(string(value))
		return nil
	},
}

var settingSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a settings value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		raw := args[1]

		// Structured values pass through as JSON; anything else is stored
		// as a string.
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "setting:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		if err := store.SetSetting(key, value); err != nil {
			fmt.Fprintln(os.Stderr, "set setting:", err)
			os.Exit(exitSysError)
		}

		fmt.Printf("Set %s\n", key)
		return nil
	},
}

var settingUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a settings key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		store, err := openStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "setting:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		if err := store.DeleteSetting(key); err != nil {
			fmt.Fprintln(os.Stderr, "unset setting:", err)
			os.Exit(exitSysError)
		}

		fmt.Printf("Unset %s\n", key)
		return nil
	},
}

func init() {
	settingCmd.AddCommand(settingGetCmd)
	settingCmd.AddCommand(settingSetCmd)
	settingCmd.AddCommand(settingUnsetCmd)
}
