// Package normalize canonicalizes raw lead fields into comparison keys.
// Every function here is total: invalid or empty input yields the zero value,
// never an error.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadenrich/internal/model"
)

var (
	emailRe      = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	nonDigitRe   = regexp.MustCompile(`\D`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	titleCaser   = cases.Title(language.AmericanEnglish)
)

// Email lowercases and validates an email address. Returns "" when the input
// does not look like a deliverable address.
func Email(raw string) string {
	e := strings.ToLower(strings.TrimSpace(raw))
	if e == "" || len(e) < 6 || len(e) > 254 {
		return ""
	}
	if !strings.Contains(e, "@") {
		return ""
	}
	if !emailRe.MatchString(e) {
		return ""
	}
	return e
}

// Phone strips everything but digits and drops a leading US country code.
// Returns "" for inputs with fewer than 10 digits.
func Phone(raw string) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	if len(digits) < 10 {
		return ""
	}
	return digits
}

// PhoneE164 normalizes to E.164, assuming US numbers for 10-digit inputs.
func PhoneE164(raw string) string {
	digits := Phone(raw)
	if digits == "" {
		return ""
	}
	if len(digits) == 10 {
		return "+1" + digits
	}
	return "+" + digits
}

// WebsiteURL repairs common protocol typos, forces https, strips trailing
// slashes and punctuation, and validates via URL parse. Returns "" on failure.
func WebsiteURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// Repair malformed protocols before anything else.
	s = strings.ReplaceAll(s, "https//", "https://")
	s = strings.ReplaceAll(s, "http//", "http://")
	for strings.HasPrefix(s, "https://https://") || strings.HasPrefix(s, "http://http://") ||
		strings.HasPrefix(s, "https://http://") || strings.HasPrefix(s, "http://https://") {
		idx := strings.Index(s[8:], "http")
		s = s[8+idx:]
	}

	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	s = strings.Replace(s, "http://", "https://", 1)

	s = strings.TrimRight(s, "/.,;")

	u, err := url.Parse(s)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
		return ""
	}
	return s
}

// Domain extracts the registrable host from a website URL, lowercased and
// without a www prefix. Returns "" when the URL cannot be normalized.
func Domain(rawURL string) string {
	site := WebsiteURL(rawURL)
	if site == "" {
		return ""
	}
	u, err := url.Parse(site)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

// City titlecases each word of a city name.
func City(raw string) string {
	c := strings.TrimSpace(raw)
	if c == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(c))
}

// Company produces a lowercase, whitespace-collapsed comparison key. This is
// a matching key only, never a display value.
func Company(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" {
		return ""
	}
	return multiSpaceRe.ReplaceAllString(c, " ")
}

// SourceHash computes the stable dedup-bucket hash over the pipe-joined
// normalization keys, truncated to 16 hex characters.
func SourceHash(emailNorm, domainNorm, phoneNorm string) string {
	sum := sha256.Sum256([]byte(emailNorm + "|" + domainNorm + "|" + phoneNorm))
	return hex.EncodeToString(sum[:])[:16]
}

// Record derives all normalization keys for a raw record.
func Record(r model.RawRecord) model.NormalizedContact {
	n := model.NormalizedContact{
		EmailNorm:   Email(r.Email),
		PhoneNorm:   PhoneE164(r.Phone),
		DomainNorm:  Domain(r.Website),
		CityNorm:    City(r.City),
		CompanyNorm: Company(r.CompanyName),
	}
	n.SourceHash = SourceHash(n.EmailNorm, n.DomainNorm, n.PhoneNorm)
	return n
}
