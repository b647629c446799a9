package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/model"
)

// ExportItems creates one Notion page per completed item. It returns the
// number of pages created; a single page failure aborts the export so the
// caller can retry from the job's item state.
func ExportItems(ctx context.Context, c Client, dbID string, items []model.BulkJobItem) (int, error) {
	created := 0
	for i := range items {
		item := &items[i]
		if item.Status != model.ItemStatusComplete {
			continue
		}
		req := &notionapi.PageCreateRequest{
			Parent:     notionapi.Parent{DatabaseID: notionapi.DatabaseID(dbID)},
			Properties: itemProperties(item),
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrap(err, fmt.Sprintf("notion: export item %s", item.ID))
		}
		created++
	}
	zap.L().Info("notion export complete",
		zap.String("database_id", dbID),
		zap.Int("pages_created", created))
	return created, nil
}

func itemProperties(item *model.BulkJobItem) notionapi.Properties {
	raw := item.ParsedData

	name := raw.CompanyName
	if bi := item.Enrichment; bi != nil && bi.CompanyName != "" {
		name = bi.CompanyName
	}
	if name == "" {
		name = strings.TrimSpace(raw.FirstName + " " + raw.LastName)
	}
	if name == "" {
		name = raw.Email
	}

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: name}}},
		},
		"Confidence": notionapi.NumberProperty{Number: item.ConfidenceScore},
	}
	if raw.Email != "" {
		props["Email"] = notionapi.EmailProperty{Email: raw.Email}
	}
	if raw.Website != "" {
		props["Website"] = notionapi.URLProperty{URL: raw.Website}
	}
	if item.Icebreaker != "" {
		props["Icebreaker"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: item.Icebreaker}}},
		}
	}
	if bi := item.Enrichment; bi != nil && bi.Industry != "" {
		props["Industry"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: bi.Industry},
		}
	}
	return props
}
