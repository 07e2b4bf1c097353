package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	factorybatch "github.com/ghalamif/FactoryBatch"
	"github.com/ghalamif/FactoryBatch/internal/adapters/kafka"
	"github.com/ghalamif/FactoryBatch/internal/adapters/observability"
	"github.com/ghalamif/FactoryBatch/internal/app/simulate"
)

func newSimulateCmd(flags *globalFlags) *cobra.Command {
	var (
		interval time.Duration
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish synthetic readings to the configured Kafka topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := factorybatch.LoadConfig(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Kafka.Topic == "" {
				return fmt.Errorf("kafka.topic is required for simulate")
			}
			if interval <= 0 {
				interval = cfg.Simulator.Interval
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer log.Sync()

			pub := kafka.NewPublisher(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
			defer pub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			gen := simulate.NewGenerator(cfg.Simulator.MachineID, seed, nil)
			return simulate.Run(ctx, gen, pub, interval, observability.NewPromObs(log))
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Publish interval (default simulator.interval)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default time-based)")
	return cmd
}
