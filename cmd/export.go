package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/export"
	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/normalize"
	"github.com/sells-group/leadenrich/internal/store"
	notionpkg "github.com/sells-group/leadenrich/pkg/notion"
	sfpkg "github.com/sells-group/leadenrich/pkg/salesforce"
)

var (
	exportOut        string
	exportNotion     bool
	exportSalesforce bool
)

var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export a job's enriched results",
	Long:  "Writes enriched items to CSV, and optionally pushes them to Notion and Salesforce. Only complete items are exported.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		jb, err := st.GetBulkJob(ctx, jobID)
		if err != nil {
			return eris.Wrap(err, "load job")
		}
		if jb == nil {
			return eris.Errorf("job %s not found", jobID)
		}

		out := os.Stdout
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		written, err := export.WriteCSV(ctx, st, jobID, out)
		if err != nil {
			return eris.Wrap(err, "write csv")
		}
		zap.L().Info("csv export complete",
			zap.String("job_id", jobID),
			zap.Int("rows", written),
		)

		if !exportNotion && !exportSalesforce {
			return nil
		}

		items, err := st.GetBulkJobItems(ctx, jobID)
		if err != nil {
			return eris.Wrap(err, "load job items")
		}

		if exportNotion {
			if cfg.Notion.Token == "" || cfg.Notion.LeadDB == "" {
				return eris.New("notion token and lead DB ID are required (LEADENRICH_NOTION_TOKEN, LEADENRICH_NOTION_LEAD_DB)")
			}
			created, err := notionpkg.ExportItems(ctx, notionpkg.NewClient(cfg.Notion.Token), cfg.Notion.LeadDB, items)
			if err != nil {
				return eris.Wrap(err, "notion export")
			}
			zap.L().Info("notion export complete", zap.Int("created", created))
		}

		if exportSalesforce {
			sfClient, err := initSalesforce()
			if err != nil {
				return err
			}
			synced, err := syncLeads(cmd, st, sfClient, items)
			if err != nil {
				return err
			}
			zap.L().Info("salesforce sync complete", zap.Int("synced", synced))
		}

		return nil
	},
}

// syncLeads pushes each complete item to Salesforce, preferring the stored
// contact over the raw record for field values.
func syncLeads(cmd *cobra.Command, st store.Store, sfClient sfpkg.Client, items []model.BulkJobItem) (int, error) {
	ctx := cmd.Context()

	var synced int
	for i := range items {
		item := &items[i]
		if item.Status != model.ItemStatusComplete {
			continue
		}

		contact, err := st.FindContactByEmail(ctx, normalize.Email(item.ParsedData.Email))
		if err != nil {
			return synced, eris.Wrap(err, "lookup contact")
		}
		if contact == nil {
			contact = contactFromRecord(item.ParsedData)
		}

		id, created, err := sfpkg.SyncLead(ctx, sfClient, contact, item)
		if err != nil {
			return synced, eris.Wrapf(err, "sync item %d", item.Position)
		}
		synced++
		zap.L().Debug("lead synced",
			zap.String("lead_id", id),
			zap.Bool("created", created),
		)
	}
	return synced, nil
}

// contactFromRecord builds a transient contact for records whose stored
// contact is unavailable, for example enriched before a schema migration.
func contactFromRecord(raw model.RawRecord) *model.Contact {
	return &model.Contact{
		FirstName: raw.FirstName,
		LastName:  raw.LastName,
		Email:     raw.Email,
		EmailNorm: normalize.Email(raw.Email),
		Phone:     raw.Phone,
		Company:   raw.CompanyName,
		Website:   raw.Website,
		City:      raw.City,
		State:     raw.State,
		Title:     raw.Title,
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "output CSV path (- for stdout)")
	exportCmd.Flags().BoolVar(&exportNotion, "notion", false, "also export to the configured Notion database")
	exportCmd.Flags().BoolVar(&exportSalesforce, "salesforce", false, "also sync complete items to Salesforce as Leads")
	rootCmd.AddCommand(exportCmd)
}
