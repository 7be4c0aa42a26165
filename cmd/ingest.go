package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestDrain bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one discovery/dedupe/staging pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		settings, err := env.Pipeline.LoadIngestionSettings(ctx)
		if err != nil {
			return err
		}

		result, err := env.Pipeline.RunIngestion(ctx, settings)
		if err != nil {
			return err
		}
		fmt.Printf("staged %d, skipped %d\n", result.Staged, result.Skipped)

		if ingestDrain {
			processed, err := env.Queue.DrainOnce(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("queues drained", zap.Int("processed", processed))
		}

		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDrain, "drain", false, "process the enqueued enrichment jobs before exiting")
	rootCmd.AddCommand(ingestCmd)
}
