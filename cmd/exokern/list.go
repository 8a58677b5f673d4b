package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/exokern/user"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the programs the machine can boot.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range user.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
