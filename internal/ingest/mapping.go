// Package ingest turns uploaded lead lists (CSV or XLSX, local or remote)
// into RawRecords via a static header-synonym table.
package ingest

import (
	"strings"

	"github.com/sells-group/leadenrich/internal/model"
)

// canonicalField identifies one recognized RawRecord field.
type canonicalField int

const (
	fieldUnknown canonicalField = iota
	fieldFirstName
	fieldLastName
	fieldFullName
	fieldEmail
	fieldPhone
	fieldCompanyName
	fieldWebsite
	fieldCity
	fieldState
	fieldTitle
	fieldLinkedInURL
)

// headerSynonyms maps normalized column headers to canonical fields. Lookup
// is static; unrecognized headers fall into the record's Extras map.
var headerSynonyms = map[string]canonicalField{
	"first_name": fieldFirstName,
	"firstname":  fieldFirstName,
	"first":      fieldFirstName,
	"fname":      fieldFirstName,

	"last_name": fieldLastName,
	"lastname":  fieldLastName,
	"last":      fieldLastName,
	"lname":     fieldLastName,
	"surname":   fieldLastName,

	"full_name": fieldFullName,
	"fullname":  fieldFullName,
	"name":      fieldFullName,
	"contact":   fieldFullName,

	"email":         fieldEmail,
	"email_address": fieldEmail,
	"e_mail":        fieldEmail,
	"mail":          fieldEmail,

	"phone":        fieldPhone,
	"phone_number": fieldPhone,
	"telephone":    fieldPhone,
	"mobile":       fieldPhone,
	"cell":         fieldPhone,

	"company":      fieldCompanyName,
	"company_name": fieldCompanyName,
	"organization": fieldCompanyName,
	"business":     fieldCompanyName,
	"account":      fieldCompanyName,

	"website":  fieldWebsite,
	"site_url": fieldWebsite,
	"url":      fieldWebsite,
	"web":      fieldWebsite,
	"domain":   fieldWebsite,
	"homepage": fieldWebsite,

	"city":     fieldCity,
	"town":     fieldCity,
	"locality": fieldCity,

	"state":    fieldState,
	"province": fieldState,
	"region":   fieldState,

	"title":     fieldTitle,
	"job_title": fieldTitle,
	"position":  fieldTitle,
	"role":      fieldTitle,

	"linkedin":     fieldLinkedInURL,
	"linkedin_url": fieldLinkedInURL,
}

// normalizeHeader lowercases a header and collapses separators to
// underscores so "Company Name", "company-name" and "COMPANY_NAME" all map.
func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '/':
			return '_'
		}
		return r
	}, h)
	return strings.Trim(h, "_")
}

// Mapper resolves a header row once and maps every subsequent data row.
type Mapper struct {
	fields []canonicalField
	raw    []string
}

// NewMapper builds a Mapper from the file's header row.
func NewMapper(header []string) *Mapper {
	m := &Mapper{
		fields: make([]canonicalField, len(header)),
		raw:    make([]string, len(header)),
	}
	for i, h := range header {
		m.raw[i] = normalizeHeader(h)
		m.fields[i] = headerSynonyms[m.raw[i]]
	}
	return m
}

// Map converts one data row into a RawRecord. A full_name column is split on
// the first space when dedicated name columns are absent.
func (m *Mapper) Map(row []string) model.RawRecord {
	var rec model.RawRecord
	var fullName string

	for i, value := range row {
		if i >= len(m.fields) {
			break
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch m.fields[i] {
		case fieldFirstName:
			rec.FirstName = value
		case fieldLastName:
			rec.LastName = value
		case fieldFullName:
			fullName = value
		case fieldEmail:
			rec.Email = value
		case fieldPhone:
			rec.Phone = value
		case fieldCompanyName:
			rec.CompanyName = value
		case fieldWebsite:
			rec.Website = value
		case fieldCity:
			rec.City = value
		case fieldState:
			rec.State = value
		case fieldTitle:
			rec.Title = value
		case fieldLinkedInURL:
			rec.LinkedInURL = value
		default:
			if rec.Extras == nil {
				rec.Extras = make(map[string]string)
			}
			rec.Extras[m.raw[i]] = value
		}
	}

	if fullName != "" && rec.FirstName == "" && rec.LastName == "" {
		first, last, _ := strings.Cut(fullName, " ")
		rec.FirstName = first
		rec.LastName = strings.TrimSpace(last)
	}
	return rec
}
