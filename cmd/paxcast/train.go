package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train both models from DATA_PATH and commit the artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		manifest, err := rt.svc.Train(cmd.Context(), nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "trained version %s on %d rows (baseline %.4f)\n",
			manifest.Version, manifest.Samples, manifest.BaselineValue)
		return nil
	},
}
