package identity

import (
	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/normalize"
)

// BatchDeduper catches within-file duplicates before any store round-trip.
// It buckets records by source hash and, when enabled, by a weak
// company+city pair for records that carry neither email nor phone. The
// company+city tier is the lowest-priority signal and is configurable because
// it can, in principle, merge unrelated contacts at the same company and city.
type BatchDeduper struct {
	byHash        map[string]int
	byCompanyCity map[string]int
	companyCity   bool
	seen          int
}

// NewBatchDeduper creates a deduper. companyCityMatch enables the weak
// company+city tier.
func NewBatchDeduper(companyCityMatch bool) *BatchDeduper {
	return &BatchDeduper{
		byHash:        make(map[string]int),
		byCompanyCity: make(map[string]int),
		companyCity:   companyCityMatch,
	}
}

// Observe registers a record and reports whether it duplicates an earlier
// record in the same batch, along with the earlier record's index and the key
// tier that matched.
func (d *BatchDeduper) Observe(raw model.RawRecord) (dup bool, firstIndex int, matchedBy model.MatchKey) {
	idx := d.seen
	d.seen++

	norm := normalize.Record(raw)

	// Hash bucket covers email/domain/phone identity.
	hasStrongKey := norm.EmailNorm != "" || norm.DomainNorm != "" || norm.PhoneNorm != ""
	if hasStrongKey {
		if first, ok := d.byHash[norm.SourceHash]; ok {
			return true, first, strongestKey(norm)
		}
		d.byHash[norm.SourceHash] = idx
	}

	// Weak tier: only for records carrying neither email nor phone. A
	// domain-only record still enters this bucket.
	if d.companyCity && norm.EmailNorm == "" && norm.PhoneNorm == "" &&
		norm.CompanyNorm != "" && norm.CityNorm != "" {
		key := norm.CompanyNorm + "|" + norm.CityNorm
		if first, ok := d.byCompanyCity[key]; ok {
			return true, first, model.MatchCompanyCity
		}
		d.byCompanyCity[key] = idx
	}

	return false, -1, model.MatchNone
}

func strongestKey(norm model.NormalizedContact) model.MatchKey {
	switch {
	case norm.EmailNorm != "":
		return model.MatchEmail
	case norm.DomainNorm != "":
		return model.MatchDomain
	case norm.PhoneNorm != "":
		return model.MatchPhone
	default:
		return model.MatchNone
	}
}
