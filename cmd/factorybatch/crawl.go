package main

import (
	"github.com/spf13/cobra"
)

func newCrawlCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Refresh the schema catalog over the export prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer rt.Shutdown(cmd.Context())

			if err := rt.RefreshCatalog(cmd.Context()); err != nil {
				return err
			}
			return printResult(cmd, map[string]string{"status": "ok"})
		},
	}
}
