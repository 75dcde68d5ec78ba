package main

import (
	"fmt"
	"io"

	"github.com/openmined/trsync/internal/event"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(newPlanCmd())
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the changes the next run would apply, without applying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromViper()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			// the plan only needs the decision, not a prompt
			cfg.ConfirmStartup = false

			r, err := newRunner(cmd, cfg)
			if err != nil {
				return err
			}
			changes, err := r.Plan(cmd.Context())
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), changes)
		},
	}
}

func printPlan(w io.Writer, changes []event.Change) error {
	if len(changes) == 0 {
		_, err := fmt.Fprintln(w, cyan("nothing to do"))
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(changes); err != nil {
		return err
	}
	return enc.Close()
}
