// Version command for the sone CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sone/pkg/sone"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sone version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "sone", sone.Version)
	},
}
