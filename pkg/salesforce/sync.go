package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadenrich/internal/model"
)

// leadMatch is the shape we decode lead lookups into.
type leadMatch struct {
	ID string `json:"Id"`
}

// SyncLead upserts an enriched contact as a Salesforce Lead, matched on
// email. It returns the Lead ID and whether a new record was created.
func SyncLead(ctx context.Context, c Client, contact *model.Contact, item *model.BulkJobItem) (string, bool, error) {
	if contact == nil {
		return "", false, eris.New("sf: nil contact")
	}

	fields := leadFields(contact, item)

	if contact.EmailNorm != "" {
		var result struct {
			Records []leadMatch `json:"records"`
		}
		soql := fmt.Sprintf("SELECT Id FROM Lead WHERE Email = '%s' LIMIT 1",
			strings.ReplaceAll(contact.EmailNorm, "'", "\\'"))
		if err := c.Query(ctx, soql, &result); err != nil {
			return "", false, eris.Wrap(err, "sf: lookup lead")
		}
		if len(result.Records) > 0 {
			id := result.Records[0].ID
			if err := c.UpdateOne(ctx, "Lead", id, fields); err != nil {
				return "", false, err
			}
			return id, false, nil
		}
	}

	id, err := c.InsertOne(ctx, "Lead", fields)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// leadFields flattens contact and enrichment data into Lead fields. Lead
// requires LastName and Company; placeholders fill gaps the way the web UI
// does.
func leadFields(contact *model.Contact, item *model.BulkJobItem) map[string]any {
	lastName := contact.LastName
	if lastName == "" {
		lastName = "Unknown"
	}
	company := contact.Company
	if company == "" {
		company = "Unknown"
	}

	fields := map[string]any{
		"LastName": lastName,
		"Company":  company,
	}
	setIf := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	setIf("FirstName", contact.FirstName)
	setIf("Email", contact.Email)
	setIf("Phone", contact.Phone)
	setIf("Website", contact.Website)
	setIf("City", contact.City)
	setIf("State", contact.State)
	setIf("Title", contact.Title)

	if item != nil {
		fields["Description"] = itemDescription(item)
		if bi := item.Enrichment; bi != nil {
			setIf("Industry", bi.Industry)
		}
	}
	return fields
}

func itemDescription(item *model.BulkJobItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Confidence: %.2f (%s)\n", item.ConfidenceScore, item.ConfidenceRationale)
	for _, bullet := range item.PersonalizationBullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	if item.Icebreaker != "" {
		fmt.Fprintf(&b, "Icebreaker: %s\n", item.Icebreaker)
	}
	return strings.TrimRight(b.String(), "\n")
}
