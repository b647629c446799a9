package model

// BusinessIntelligence holds the signals derived from scraped page content.
// All fields default to zero values when the scrape failed; extraction never
// errors.
type BusinessIntelligence struct {
	Services    []string `json:"services,omitempty"`
	Signals     []string `json:"signals,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	FoundedYear int      `json:"founded_year,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
}

// PersonalizationTier classifies how much real content backed the generated copy.
type PersonalizationTier int

const (
	// TierGeneric means nothing usable was available; no copy is produced.
	TierGeneric PersonalizationTier = 0
	// TierThin means the scrape was thin but input fields allowed light copy.
	TierThin PersonalizationTier = 1
	// TierRich means the scrape produced enough content for specific copy.
	TierRich PersonalizationTier = 2
)

// Personalization is the tiered outreach copy generated for one record.
type Personalization struct {
	Bullets    []string            `json:"bullets,omitempty"`
	Icebreaker string              `json:"icebreaker,omitempty"`
	Tier       PersonalizationTier `json:"tier"`
	IsGeneric  bool                `json:"is_generic"`
}

// Confidence is the scored result of the enrichment for one record.
type Confidence struct {
	Score     float64 `json:"score"` // [0,1], 2 decimals
	Rationale string  `json:"rationale"`
}

// ThinRecordRationale is the forced rationale when no real enrichment signal
// fired and the score came only from input-derived fields.
const ThinRecordRationale = "thin_record"
