package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/fetch"
	"github.com/sells-group/leadenrich/internal/identity"
	"github.com/sells-group/leadenrich/internal/ingest"
	"github.com/sells-group/leadenrich/internal/model"
)

var (
	importSource  string
	importProcess bool
	importSkipDup bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a contact list and create a bulk job",
	Long:  "Reads a CSV or XLSX file from a local path, HTTP(S) URL, or FTP URL, creates a bulk enrichment job, and optionally processes it immediately.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		httpClient := fetch.NewHTTPClient(fetch.HTTPOptions{Timeout: cfg.Scrape.Timeout()})
		ftpClient := fetch.NewFTPClient(cfg.Scrape.Timeout())
		reader := ingest.NewReader(httpClient, ftpClient)

		records, err := reader.Read(ctx, importSource)
		if err != nil {
			return eris.Wrap(err, "read source")
		}

		// Flag within-file duplicates before any enrichment work.
		deduper := identity.NewBatchDeduper(cfg.Identity.CompanyCityMatch)
		var kept []model.RawRecord
		var dupCount int
		for _, rec := range records {
			dup, firstIdx, matchedBy := deduper.Observe(rec)
			if dup {
				dupCount++
				zap.L().Debug("batch-local duplicate",
					zap.Int("first_index", firstIdx),
					zap.String("matched_by", string(matchedBy)),
				)
				if importSkipDup {
					continue
				}
			}
			kept = append(kept, rec)
		}

		jb, err := env.Store.CreateBulkJob(ctx, importSource, kept)
		if err != nil {
			return eris.Wrap(err, "create job")
		}

		zap.L().Info("job created",
			zap.String("job_id", jb.ID),
			zap.Int("records", jb.TotalRecords),
			zap.Int("batch_duplicates", dupCount),
		)

		if !importProcess {
			cmd.Println(jb.ID)
			return nil
		}

		if err := env.Processor.ProcessJobItems(ctx, jb.ID); err != nil {
			return eris.Wrap(err, "process job")
		}

		done, err := env.Store.GetBulkJob(ctx, jb.ID)
		if err != nil {
			return eris.Wrap(err, "reload job")
		}
		zap.L().Info("job finished",
			zap.String("job_id", done.ID),
			zap.String("status", string(done.Status)),
			zap.Int("successful", done.Successful),
			zap.Int("failed", done.Failed),
			zap.Int("duplicates", done.DuplicatesFound),
		)
		cmd.Println(done.ID)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "path or URL of the contact list (required)")
	importCmd.Flags().BoolVar(&importProcess, "process", false, "process the job immediately after import")
	importCmd.Flags().BoolVar(&importSkipDup, "skip-duplicates", false, "drop within-file duplicates instead of importing them")
	_ = importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}
