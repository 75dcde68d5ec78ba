package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newOnceCmd())
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Apply what changed on both sides since the last run, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, true)
		},
	}
}
