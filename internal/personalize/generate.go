// Package personalize turns extracted business intelligence into tiered
// outreach copy: up to four bullets and one icebreaker sentence.
package personalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/leadenrich/internal/model"
)

const maxBullets = 4

// minRichBodyChars is the body-text floor for tier-2 copy.
const minRichBodyChars = 100

// signalBullets maps canonical signal phrases to bullet copy, in signal-list
// order. Only signals present here produce bullets.
var signalBullets = []struct {
	signal string
	bullet string
}{
	{"family-owned business", "They highlight being family-owned — worth referencing the personal touch."},
	{"24/7 availability", "They advertise 24/7 availability, so responsiveness is a selling point for them."},
	{"licensed and insured", "They emphasize being licensed and insured — credibility matters to their customers."},
	{"award-winning", "They promote award-winning work on their site."},
	{"free estimates", "They offer free estimates, a sign they compete on accessibility."},
	{"locally owned", "They position themselves as locally owned and community-rooted."},
	{"veteran-owned", "They are veteran-owned, which they feature prominently."},
	{"emergency service", "They market emergency service, so speed is core to their pitch."},
	{"satisfaction guarantee", "They back work with a satisfaction guarantee."},
	{"BBB accredited", "They display BBB accreditation as a trust marker."},
}

// Generate produces the personalization for one record. Tier 0 output is
// empty: copy is never fabricated from nothing.
func Generate(intel model.BusinessIntelligence, scrape *model.ScrapeResult, input model.RawRecord) model.Personalization {
	tier := classify(intel, scrape)
	if tier == model.TierGeneric {
		return model.Personalization{Tier: model.TierGeneric, IsGeneric: true}
	}

	company := resolveCompanyName(intel, input)
	return model.Personalization{
		Bullets:    buildBullets(intel),
		Icebreaker: buildIcebreaker(intel, company),
		Tier:       tier,
	}
}

func classify(intel model.BusinessIntelligence, scrape *model.ScrapeResult) model.PersonalizationTier {
	scraped := scrape != nil && scrape.Success
	if !scraped {
		return model.TierGeneric
	}

	bodyLen := 0
	if scrape.Content != nil {
		bodyLen = len(scrape.Content.BodyText)
	}
	hasRealSignal := len(intel.Services) > 0 || len(intel.Signals) > 0 || intel.FoundedYear > 0

	if bodyLen >= minRichBodyChars && hasRealSignal {
		return model.TierRich
	}
	if hasRealSignal || intel.City != "" || intel.CompanyName != "" {
		return model.TierThin
	}
	return model.TierGeneric
}

// buildBullets assembles bullets in fixed order, stopping at four: services,
// location, years in business, then signal bullets in table order.
func buildBullets(intel model.BusinessIntelligence) []string {
	var bullets []string

	if len(intel.Services) > 0 {
		top := intel.Services
		if len(top) > 3 {
			top = top[:3]
		}
		bullets = append(bullets, fmt.Sprintf("Their site highlights %s services.", joinNatural(top)))
	}

	if loc := location(intel); loc != "" {
		bullets = append(bullets, fmt.Sprintf("They serve the %s area.", loc))
	}

	if years := yearsInBusiness(intel.FoundedYear); years > 0 {
		bullets = append(bullets, fmt.Sprintf("They've been in business roughly %d years (since %d).", years, intel.FoundedYear))
	}

	for _, sb := range signalBullets {
		if len(bullets) >= maxBullets {
			break
		}
		if hasSignal(intel.Signals, sb.signal) {
			bullets = append(bullets, sb.bullet)
		}
	}

	if len(bullets) > maxBullets {
		bullets = bullets[:maxBullets]
	}
	return bullets
}

// buildIcebreaker walks the priority chain; the first matching branch wins.
func buildIcebreaker(intel model.BusinessIntelligence, company string) string {
	loc := location(intel)

	switch {
	case len(intel.Services) > 0 && loc != "":
		return fmt.Sprintf("Noticed %s offers %s in %s — impressive local presence.",
			company, strings.ToLower(joinNatural(topN(intel.Services, 2))), loc)
	case intel.FoundedYear > 0 && intel.FoundedYear < 2010:
		return fmt.Sprintf("Saw that %s has been at it since %d — that kind of staying power stands out.",
			company, intel.FoundedYear)
	case hasSignal(intel.Signals, "award-winning"):
		return fmt.Sprintf("Came across the award-winning work %s has been recognized for.", company)
	case loc != "":
		return fmt.Sprintf("Noticed %s serving the %s area and wanted to reach out.", company, loc)
	default:
		return fmt.Sprintf("I recently reviewed %s's website and wanted to connect.", company)
	}
}

func resolveCompanyName(intel model.BusinessIntelligence, input model.RawRecord) string {
	if intel.CompanyName != "" {
		return intel.CompanyName
	}
	if input.CompanyName != "" {
		return input.CompanyName
	}
	return "your team"
}

func location(intel model.BusinessIntelligence) string {
	switch {
	case intel.City != "" && intel.State != "":
		return intel.City + ", " + intel.State
	case intel.City != "":
		return intel.City
	case intel.State != "":
		return intel.State
	default:
		return ""
	}
}

// yearsInBusiness returns the age when the founded year lands in a plausible
// 0-200 year span, else 0.
func yearsInBusiness(founded int) int {
	if founded <= 0 {
		return 0
	}
	years := time.Now().Year() - founded
	if years < 0 || years > 200 {
		return 0
	}
	return years
}

func hasSignal(signals []string, want string) bool {
	for _, s := range signals {
		if s == want {
			return true
		}
	}
	return false
}

func topN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
