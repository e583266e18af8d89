// Version command for the loom CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strandlabs/loom/pkg/loom"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the loom version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("loom", loom.Version)
	},
}
