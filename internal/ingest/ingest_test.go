package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapperSynonyms(t *testing.T) {
	m := NewMapper([]string{"Email Address", "COMPANY-NAME", "Site URL", "Town", "Job Title", "weird_col"})
	rec := m.Map([]string{"jo@acme.com", "Acme", "www.acme.com", "Austin", "Owner", "x"})

	assert.Equal(t, "jo@acme.com", rec.Email)
	assert.Equal(t, "Acme", rec.CompanyName)
	assert.Equal(t, "www.acme.com", rec.Website)
	assert.Equal(t, "Austin", rec.City)
	assert.Equal(t, "Owner", rec.Title)
	assert.Equal(t, map[string]string{"weird_col": "x"}, rec.Extras)
}

func TestMapperFullNameSplit(t *testing.T) {
	m := NewMapper([]string{"Full Name", "email"})
	rec := m.Map([]string{"Jo Anne Day", "jo@acme.com"})

	assert.Equal(t, "Jo", rec.FirstName)
	assert.Equal(t, "Anne Day", rec.LastName)
}

func TestMapperDedicatedNamesWinOverFullName(t *testing.T) {
	m := NewMapper([]string{"name", "first_name", "last_name"})
	rec := m.Map([]string{"Ignored Person", "Jo", "Day"})

	assert.Equal(t, "Jo", rec.FirstName)
	assert.Equal(t, "Day", rec.LastName)
}

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"email,company,website",
		`jo@acme.com,"Acme, Inc",acme.com`,
		",,",
		"bo@peak.com,Peak Roofing,",
	}, "\n")

	records, err := ReadCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2) // blank row dropped

	assert.Equal(t, "Acme, Inc", records[0].CompanyName)
	assert.Equal(t, "acme.com", records[0].Website)
	assert.Equal(t, "bo@peak.com", records[1].Email)
}

func TestReadCSVShortRows(t *testing.T) {
	input := "email,company\njo@acme.com\n"
	records, err := ReadCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "jo@acme.com", records[0].Email)
	assert.Empty(t, records[0].CompanyName)
}

func TestReadCSVEmptyFile(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "company_name", normalizeHeader("  Company Name "))
	assert.Equal(t, "e_mail", normalizeHeader("E-Mail"))
	assert.Equal(t, "site_url", normalizeHeader("Site.URL"))
}
