package main

import (
	"os/signal"
	"syscall"

	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/model"
)

var workerDrainOnce bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue workers and scheduled triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		if workerDrainOnce {
			processed, err := env.Queue.DrainOnce(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("queues drained", zap.Int("processed", processed))
			return nil
		}

		sched := cron.New()
		err = sched.AddFunc(cfg.Worker.IngestSchedule, func() {
			if err := env.Queue.Enqueue(ctx, model.QueueIngest, model.JobKindIngest, nil); err != nil {
				zap.L().Error("enqueue scheduled ingestion", zap.Error(err))
			}
		})
		if err != nil {
			return eris.Wrap(err, "parse ingest schedule")
		}
		err = sched.AddFunc(cfg.Worker.DigestSchedule, func() {
			if err := env.Pipeline.EnqueueDigest(ctx); err != nil {
				zap.L().Error("enqueue scheduled digest", zap.Error(err))
			}
		})
		if err != nil {
			return eris.Wrap(err, "parse digest schedule")
		}
		sched.Start()
		defer sched.Stop()

		zap.L().Info("worker starting",
			zap.String("ingest_schedule", cfg.Worker.IngestSchedule),
			zap.String("digest_schedule", cfg.Worker.DigestSchedule),
		)
		return env.Queue.Run(ctx)
	},
}

func init() {
	workerCmd.Flags().BoolVar(&workerDrainOnce, "drain-once", false, "process everything due then exit instead of running continuously")
	rootCmd.AddCommand(workerCmd)
}
