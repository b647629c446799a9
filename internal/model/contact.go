// Package model defines the core data types shared across the enrichment pipeline.
package model

import "time"

// RawRecord is one row of a user-supplied lead list after header mapping.
// Canonical fields are populated from recognized column synonyms; anything
// unrecognized lands in Extras. Immutable once ingested.
type RawRecord struct {
	FirstName   string            `json:"first_name,omitempty"`
	LastName    string            `json:"last_name,omitempty"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	CompanyName string            `json:"company_name,omitempty"`
	Website     string            `json:"website,omitempty"`
	City        string            `json:"city,omitempty"`
	State       string            `json:"state,omitempty"`
	Title       string            `json:"title,omitempty"`
	LinkedInURL string            `json:"linkedin_url,omitempty"`
	Extras      map[string]string `json:"extras,omitempty"`
}

// NormalizedContact holds the comparison keys derived from a RawRecord.
// Recomputed on every write; never persisted independently of its contact.
type NormalizedContact struct {
	EmailNorm   string `json:"email_norm,omitempty"`
	PhoneNorm   string `json:"phone_norm,omitempty"` // E.164
	DomainNorm  string `json:"domain_norm,omitempty"`
	CityNorm    string `json:"city_norm,omitempty"`
	CompanyNorm string `json:"company_norm,omitempty"`
	SourceHash  string `json:"source_hash,omitempty"`
}

// Contact is a durable identity record. A contact is uniquely addressable by
// at least one of email/domain/phone normalization keys. Merges fill missing
// fields only; existing non-empty values are never overwritten.
type Contact struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	EmailNorm    string    `json:"email_norm,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	PhoneNorm    string    `json:"phone_norm,omitempty"`
	Company      string    `json:"company,omitempty"`
	Website      string    `json:"website,omitempty"`
	DomainNorm   string    `json:"domain_norm,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	Title        string    `json:"title,omitempty"`
	LinkedInURL  string    `json:"linkedin_url,omitempty"`
	Sources      []string  `json:"sources,omitempty"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	QualityScore int       `json:"quality_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasSource reports whether the contact already carries the given source tag.
func (c *Contact) HasSource(source string) bool {
	for _, s := range c.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// MatchKey identifies which normalization key matched during identity resolution.
type MatchKey string

const (
	MatchEmail       MatchKey = "email"
	MatchDomain      MatchKey = "domain"
	MatchPhone       MatchKey = "phone"
	MatchCompanyCity MatchKey = "company_city"
	MatchNone        MatchKey = ""
)

// MergeOutcome describes the result of resolving one candidate against the
// contact graph.
type MergeOutcome struct {
	Contact       *Contact `json:"contact"`
	IsNew         bool     `json:"is_new"`
	MatchedBy     MatchKey `json:"matched_by,omitempty"`
	FieldsUpdated []string `json:"fields_updated,omitempty"`
}

// Company is upserted by domain match when a record carries a website.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
