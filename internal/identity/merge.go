// Package identity resolves incoming lead records against the contact graph
// and merges them without data loss.
package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/normalize"
	"github.com/sells-group/leadenrich/internal/store"
)

// Resolver matches candidates against existing contacts by normalization key
// priority (email, then domain, then phone) and applies no-loss merges:
// only missing fields are filled, existing non-empty values are never
// overwritten. Processing two records in either order converges to the same
// field set.
type Resolver struct {
	store   store.Store
	nowFunc func() time.Time
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st, nowFunc: time.Now}
}

// Merge resolves one raw record. On a key match the existing contact is
// filled; otherwise a new contact is created with sources = [source].
func (r *Resolver) Merge(ctx context.Context, raw model.RawRecord, source string) (*model.MergeOutcome, error) {
	norm := normalize.Record(raw)

	existing, matchedBy, err := r.lookup(ctx, norm)
	if err != nil {
		return nil, err
	}

	now := r.nowFunc().UTC()

	if existing == nil {
		contact := newContact(raw, norm, source, now)
		if err := r.store.CreateContact(ctx, contact); err != nil {
			return nil, eris.Wrap(err, "identity: create contact")
		}
		return &model.MergeOutcome{Contact: contact, IsNew: true, MatchedBy: model.MatchNone}, nil
	}

	updated := fillMissing(existing, raw, norm)
	if !existing.HasSource(source) {
		existing.Sources = append(existing.Sources, source)
		updated = append(updated, "sources")
	}
	existing.LastSeenAt = now

	if err := r.store.UpdateContact(ctx, existing); err != nil {
		return nil, eris.Wrap(err, "identity: update contact")
	}

	zap.L().Debug("identity: merged contact",
		zap.String("contact_id", existing.ID),
		zap.String("matched_by", string(matchedBy)),
		zap.Int("fields_updated", len(updated)),
	)

	return &model.MergeOutcome{
		Contact:       existing,
		IsNew:         false,
		MatchedBy:     matchedBy,
		FieldsUpdated: updated,
	}, nil
}

// lookup finds an existing contact by key priority; first hit wins.
func (r *Resolver) lookup(ctx context.Context, norm model.NormalizedContact) (*model.Contact, model.MatchKey, error) {
	if norm.EmailNorm != "" {
		c, err := r.store.FindContactByEmail(ctx, norm.EmailNorm)
		if err != nil {
			return nil, model.MatchNone, eris.Wrap(err, "identity: find by email")
		}
		if c != nil {
			return c, model.MatchEmail, nil
		}
	}
	if norm.DomainNorm != "" {
		c, err := r.store.FindContactByDomain(ctx, norm.DomainNorm)
		if err != nil {
			return nil, model.MatchNone, eris.Wrap(err, "identity: find by domain")
		}
		if c != nil {
			return c, model.MatchDomain, nil
		}
	}
	if norm.PhoneNorm != "" {
		c, err := r.store.FindContactByPhone(ctx, norm.PhoneNorm)
		if err != nil {
			return nil, model.MatchNone, eris.Wrap(err, "identity: find by phone")
		}
		if c != nil {
			return c, model.MatchPhone, nil
		}
	}
	return nil, model.MatchNone, nil
}

func newContact(raw model.RawRecord, norm model.NormalizedContact, source string, now time.Time) *model.Contact {
	return &model.Contact{
		ID:          uuid.New().String(),
		FirstName:   raw.FirstName,
		LastName:    raw.LastName,
		Email:       raw.Email,
		EmailNorm:   norm.EmailNorm,
		Phone:       raw.Phone,
		PhoneNorm:   norm.PhoneNorm,
		Company:     raw.CompanyName,
		Website:     normalize.WebsiteURL(raw.Website),
		DomainNorm:  norm.DomainNorm,
		City:        norm.CityNorm,
		State:       raw.State,
		Title:       raw.Title,
		LinkedInURL: raw.LinkedInURL,
		Sources:     []string{source},
		LastSeenAt:  now,
		CreatedAt:   now,
	}
}

// fillMissing applies the no-loss merge: a field transitions only from empty
// to non-empty. Returns the names of fields that were filled.
func fillMissing(c *model.Contact, raw model.RawRecord, norm model.NormalizedContact) []string {
	var updated []string
	fill := func(name string, dst *string, incoming string) {
		if *dst == "" && incoming != "" {
			*dst = incoming
			updated = append(updated, name)
		}
	}

	fill("first_name", &c.FirstName, raw.FirstName)
	fill("last_name", &c.LastName, raw.LastName)
	fill("email", &c.Email, raw.Email)
	fill("email_norm", &c.EmailNorm, norm.EmailNorm)
	fill("phone", &c.Phone, raw.Phone)
	fill("phone_norm", &c.PhoneNorm, norm.PhoneNorm)
	fill("company", &c.Company, raw.CompanyName)
	fill("website", &c.Website, normalize.WebsiteURL(raw.Website))
	fill("domain_norm", &c.DomainNorm, norm.DomainNorm)
	fill("city", &c.City, norm.CityNorm)
	fill("state", &c.State, raw.State)
	fill("title", &c.Title, raw.Title)
	fill("linkedin_url", &c.LinkedInURL, raw.LinkedInURL)
	return updated
}
