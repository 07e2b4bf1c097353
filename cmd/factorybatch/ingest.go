package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ghalamif/FactoryBatch/internal/domain"
)

func newIngestCmd(flags *globalFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one telemetry payload from a file or stdin",
		Example: `  factorybatch ingest -f reading.json
  echo '{"machine_id":"M01","temperature":72.34,"vibration":0.42,"timestamp":"2024-01-01T10:15:00Z"}' | factorybatch ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			payload, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			rt, err := loadRuntime(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer rt.Shutdown(cmd.Context())

			res, err := rt.Ingest(cmd.Context(), payload)
			if perr := printResult(cmd, res); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if res.Status == domain.StatusRejected {
				return fmt.Errorf("payload rejected: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Payload file, - for stdin")
	return cmd
}
