package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/store"
)

var (
	processAllPending bool
	processParallel   int
)

var processCmd = &cobra.Command{
	Use:   "process [job-id]",
	Short: "Process a bulk job's items",
	Long:  "Runs enrichment for every pending item in the job. Safe to re-run on a partially finished or failed job; terminal items are skipped. With --all-pending, runs every pending job with bounded parallelism.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if processAllPending {
			if len(args) > 0 {
				return eris.New("cannot combine a job ID with --all-pending")
			}
			return processPending(cmd, env)
		}

		if len(args) == 0 {
			return eris.New("a job ID is required unless --all-pending is set")
		}
		jobID := args[0]

		if err := env.Processor.ProcessJobItems(ctx, jobID); err != nil {
			return eris.Wrap(err, "process job")
		}

		jb, err := env.Store.GetBulkJob(ctx, jobID)
		if err != nil {
			return eris.Wrap(err, "reload job")
		}

		zap.L().Info("job finished",
			zap.String("job_id", jb.ID),
			zap.String("status", string(jb.Status)),
			zap.Int("total", jb.TotalRecords),
			zap.Int("successful", jb.Successful),
			zap.Int("failed", jb.Failed),
			zap.Int("duplicates", jb.DuplicatesFound),
		)
		return nil
	},
}

// processPending runs every pending job. Items within a job stay strictly
// ordered; only distinct jobs run in parallel.
func processPending(cmd *cobra.Command, env *pipelineEnv) error {
	ctx := cmd.Context()

	jobs, err := env.Store.ListBulkJobs(ctx, store.JobFilter{Status: model.JobStatusPending})
	if err != nil {
		return eris.Wrap(err, "list pending jobs")
	}
	if len(jobs) == 0 {
		zap.L().Info("no pending jobs")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(processParallel)
	for _, jb := range jobs {
		jobID := jb.ID
		g.Go(func() error {
			if err := env.Processor.ProcessJobItems(gctx, jobID); err != nil {
				return eris.Wrapf(err, "process job %s", jobID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("pending jobs processed", zap.Int("jobs", len(jobs)))
	return nil
}

func init() {
	processCmd.Flags().BoolVar(&processAllPending, "all-pending", false, "process every pending job")
	processCmd.Flags().IntVar(&processParallel, "parallel", 2, "max jobs processed concurrently with --all-pending")
	rootCmd.AddCommand(processCmd)
}
