package model

// ScrapeSource records one fetch attempt against a URL. The slice on a
// ScrapeResult is append-only: one entry per attempt regardless of outcome.
type ScrapeSource struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// PageContent is the structured reduction of a successfully scraped HTML page.
type PageContent struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Headings    []string          `json:"headings,omitempty"`
	BodyText    string            `json:"body_text,omitempty"`
	Links       []string          `json:"links,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ScrapeResult is the outcome of scraping one website.
type ScrapeResult struct {
	Success bool           `json:"success"`
	Sources []ScrapeSource `json:"sources"`
	Content *PageContent   `json:"content,omitempty"`
}

// FinalURL returns the URL of the last attempt, or empty if none were made.
func (r *ScrapeResult) FinalURL() string {
	if len(r.Sources) == 0 {
		return ""
	}
	return r.Sources[len(r.Sources)-1].URL
}

// FinalStatus returns the status code of the last attempt.
func (r *ScrapeResult) FinalStatus() int {
	if len(r.Sources) == 0 {
		return 0
	}
	return r.Sources[len(r.Sources)-1].StatusCode
}

// LastError returns the failure reason of the last attempt, or empty.
func (r *ScrapeResult) LastError() string {
	if len(r.Sources) == 0 {
		return ""
	}
	return r.Sources[len(r.Sources)-1].Error
}
