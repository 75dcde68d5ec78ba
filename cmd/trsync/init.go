package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

// newInitCmd writes the flags and environment of this invocation to the
// config file, so later runs only need `trsync`.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Validate the given settings and save them to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromViper()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			// the file viper was pointed at, found or not
			path := cfg.Path
			if path == "" {
				path, _ = cmd.Flags().GetString("config")
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config saved to %s\n", cyan(path))
			return nil
		},
	}
}
