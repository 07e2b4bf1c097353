package main

import (
	"github.com/spf13/cobra"

	factorybatch "github.com/ghalamif/FactoryBatch"
)

func newValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := factorybatch.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]any{
				"status": "ok",
				"config": flags.configPath,
				"buffer": cfg.Buffer.Driver,
				"export": cfg.Export.Driver,
				"window": cfg.Extract.Window.String(),
			})
		},
	}
}
