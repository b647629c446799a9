// Package intel derives business signals from scraped page content via
// keyword and pattern matching. Extraction is pure and never fails: a failed
// scrape simply yields an empty result.
package intel

import (
	_ "embed"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadenrich/internal/model"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

const (
	maxServices = 5
	maxSignals  = 5
)

type signalEntry struct {
	Pattern string `yaml:"pattern"`
	Phrase  string `yaml:"phrase"`
	re      *regexp.Regexp
}

type industryRule struct {
	Service  string `yaml:"service"`
	Industry string `yaml:"industry"`
}

type vocabulary struct {
	Services   []string       `yaml:"services"`
	Signals    []signalEntry  `yaml:"signals"`
	Industries []industryRule `yaml:"industries"`
}

var (
	vocab      vocabulary
	titleCaser = cases.Title(language.AmericanEnglish)

	phoneRe   = regexp.MustCompile(`\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}`)
	emailRe   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	foundedRe = regexp.MustCompile(`(?i)(?:since|established|est\.?|founded)(?:\s+in)?\s+(\d{4})`)
	// "City, ST": a capitalized word run followed by a two-letter state code.
	cityStateRe = regexp.MustCompile(`\b([A-Z][a-z]+(?: [A-Z][a-z]+)*),\s*([A-Z]{2})\b`)
)

// cityStateMinMatches is the evidence floor for the city/state heuristic:
// incidental capitalized bigrams are common, so the first match is only
// trusted when the page shows the pattern repeatedly.
const cityStateMinMatches = 3

var stateCodes = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true,
}

func init() {
	if err := yaml.Unmarshal(vocabularyYAML, &vocab); err != nil {
		panic("intel: invalid embedded vocabulary: " + err.Error())
	}
	for i := range vocab.Signals {
		vocab.Signals[i].re = regexp.MustCompile(vocab.Signals[i].Pattern)
	}
}

// Extract derives business intelligence from a scrape result and the input
// record. All fields stay zero on scrape failure.
func Extract(scrape *model.ScrapeResult, input model.RawRecord) model.BusinessIntelligence {
	bi := model.BusinessIntelligence{
		CompanyName: input.CompanyName,
		City:        input.City,
		State:       input.State,
	}

	if scrape == nil || !scrape.Success || scrape.Content == nil {
		return bi
	}
	c := scrape.Content

	text := strings.ToLower(strings.Join(append([]string{c.Title, c.Description},
		append(c.Headings, c.BodyText)...), " "))

	bi.Services = matchServices(text)
	bi.Signals = matchSignals(text)
	bi.Industry = inferIndustry(bi.Services)
	bi.FoundedYear = extractFoundedYear(text)

	if bi.CompanyName == "" {
		bi.CompanyName = companyFromTitle(c.Title)
	}
	if bi.Phone = input.Phone; bi.Phone == "" {
		bi.Phone = phoneRe.FindString(c.BodyText)
	}
	if bi.Email = input.Email; bi.Email == "" {
		bi.Email = pickEmail(emailRe.FindAllString(c.BodyText, -1))
	}
	if bi.City == "" || bi.State == "" {
		city, state := extractCityState(c.BodyText)
		if bi.City == "" {
			bi.City = city
		}
		if bi.State == "" {
			bi.State = state
		}
	}

	return bi
}

func matchServices(text string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, kw := range vocab.Services {
		if len(found) >= maxServices {
			break
		}
		if strings.Contains(text, kw) && !seen[kw] {
			seen[kw] = true
			found = append(found, titleCaser.String(kw))
		}
	}
	return found
}

func matchSignals(text string) []string {
	var found []string
	for _, sig := range vocab.Signals {
		if len(found) >= maxSignals {
			break
		}
		if sig.re.MatchString(text) {
			found = append(found, sig.Phrase)
		}
	}
	return found
}

// inferIndustry walks the ordered rule list; the first rule whose service was
// found wins. Any other found service falls back to "Home Services".
func inferIndustry(services []string) string {
	if len(services) == 0 {
		return ""
	}
	have := make(map[string]bool, len(services))
	for _, s := range services {
		have[s] = true
	}
	for _, rule := range vocab.Industries {
		if have[rule.Service] {
			return rule.Industry
		}
	}
	return "Home Services"
}

func extractFoundedYear(text string) int {
	m := foundedRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	now := time.Now().Year()
	if year < now-200 || year > now {
		return 0
	}
	return year
}

// pickEmail prefers an address that does not look like placeholder copy.
func pickEmail(matches []string) string {
	if len(matches) == 0 {
		return ""
	}
	for _, m := range matches {
		lower := strings.ToLower(m)
		if !strings.Contains(lower, "example") && !strings.Contains(lower, "test") {
			return m
		}
	}
	return matches[0]
}

func extractCityState(bodyText string) (string, string) {
	matches := cityStateRe.FindAllStringSubmatch(bodyText, -1)
	var valid [][]string
	for _, m := range matches {
		if stateCodes[m[2]] {
			valid = append(valid, m)
		}
	}
	if len(valid) < cityStateMinMatches {
		return "", ""
	}
	return valid[0][1], valid[0][2]
}

// companyFromTitle takes the first segment of a page title as a company name
// guess ("Acme Plumbing | Boston" -> "Acme Plumbing").
func companyFromTitle(title string) string {
	for _, sep := range []string{"|", " - ", "–", "—"} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return strings.TrimSpace(title)
}
