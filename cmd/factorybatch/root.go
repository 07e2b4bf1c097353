package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	factorybatch "github.com/ghalamif/FactoryBatch"
)

type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "factorybatch",
		Short: "Buffer factory telemetry and export it in hourly CSV batches",
		Long: `factorybatch ingests machine telemetry (temperature, vibration) into an
append-only buffer store and exports each closed hour as one CSV file to an
object store, refreshing the schema catalog afterwards.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.envFile == "" {
				return nil
			}
			if err := godotenv.Load(flags.envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", flags.envFile, err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "./data/config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Optional dotenv file loaded before the config")

	root.AddCommand(
		newServeCmd(flags),
		newIngestCmd(flags),
		newExtractCmd(flags),
		newCrawlCmd(flags),
		newSimulateCmd(flags),
		newValidateCmd(flags),
		newStatsCmd(),
	)
	return root
}

func loadRuntime(ctx context.Context, flags *globalFlags) (*factorybatch.Runtime, error) {
	cfg, err := factorybatch.LoadConfig(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return factorybatch.NewRuntime(ctx, cfg)
}

// printResult writes v as indented JSON on stdout.
func printResult(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
