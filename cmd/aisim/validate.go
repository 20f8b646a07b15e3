package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aisim/internal/config"
	"aisim/internal/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate <model>",
	Short: "Validate a model file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateModelFile(args[0]); err != nil {
			return err
		}
		// schema-valid files can still reference unknown joints
		m, err := engine.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d actuators, timestep %g)\n", m.Name(), m.NumActuators(), m.Timestep())
		return nil
	},
}
