package scrape

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadenrich/internal/model"
)

const (
	maxHeadings     = 20
	maxBodyChars    = 50000
	maxLinks        = 50
	maxMetaValueLen = 500
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// ParseHTML reduces an HTML document to the structured content the extractors
// consume: title, description, headings, visible body text, absolute links,
// and meta tags.
func ParseHTML(body []byte, base *url.URL) (*model.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}

	content := &model.PageContent{
		Metadata: map[string]string{},
	}

	// Meta tags first; the title fallback chain reads og:title from them.
	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		key, _ := sel.Attr("name")
		if key == "" {
			key, _ = sel.Attr("property")
		}
		val, _ := sel.Attr("content")
		if key == "" || val == "" {
			return
		}
		if len(val) > maxMetaValueLen {
			val = val[:maxMetaValueLen]
		}
		content.Metadata[strings.ToLower(key)] = val
	})

	content.Title = extractTitle(doc, content.Metadata)
	content.Description = content.Metadata["description"]
	if content.Description == "" {
		content.Description = content.Metadata["og:description"]
	}

	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		h := collapseSpace(sel.Text())
		if h != "" {
			content.Headings = append(content.Headings, h)
		}
		return len(content.Headings) < maxHeadings
	})

	content.BodyText = extractBodyText(doc)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		abs := absoluteLink(base, href)
		if abs != "" {
			content.Links = append(content.Links, abs)
		}
		return len(content.Links) < maxLinks
	})

	return content, nil
}

// extractTitle follows the fallback chain <title> → og:title → first <h1>.
func extractTitle(doc *goquery.Document, meta map[string]string) string {
	if t := collapseSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := meta["og:title"]; t != "" {
		return collapseSpace(t)
	}
	return collapseSpace(doc.Find("h1").First().Text())
}

// extractBodyText strips script/style/nav/footer and flattens the rest,
// capped at maxBodyChars.
func extractBodyText(doc *goquery.Document) string {
	clone := doc.Find("body").Clone()
	clone.Find("script, style, noscript, nav, footer, iframe").Remove()

	text := collapseSpace(clone.Text())
	if len(text) > maxBodyChars {
		text = text[:maxBodyChars]
	}
	return text
}

func absoluteLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
