package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Recover stale jobs",
	Long:  "Finds jobs stuck in processing past the stale threshold (crashed or killed workers) and resumes them from their last checkpoint.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// One-shot invocation: run recovered jobs to completion before exit.
		env.Monitor.InlineDispatch()

		recovered, err := env.Monitor.RecoverStaleJobs(ctx)
		if err != nil {
			return eris.Wrap(err, "recover stale jobs")
		}

		zap.L().Info("recovery sweep complete", zap.Int("recovered", recovered))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
