package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Acme Plumbing | Boston's Trusted Plumbers</title>
  <meta name="description" content="Family-owned plumbing since 1995.">
  <meta property="og:title" content="Acme Plumbing">
</head>
<body>
  <nav><a href="/about">About</a></nav>
  <h1>Acme Plumbing</h1>
  <h2>24/7 Emergency Service</h2>
  <p>Licensed and insured plumbing serving Boston, MA. Call (617) 555-0198 or
  email info@acmeplumbing.com.</p>
  <a href="/services">Services</a>
  <a href="https://partner.example.com">Partner</a>
  <a href="mailto:info@acmeplumbing.com">Email us</a>
  <script>var hidden = "should not appear";</script>
  <footer>Copyright Acme</footer>
</body>
</html>`

func TestScrape_SuccessParsesContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := New(Options{Rate: 1000, Burst: 1000})
	res := s.Scrape(context.Background(), srv.URL)

	if !res.Success {
		t.Fatalf("scrape failed: %+v", res.Sources)
	}
	if len(res.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(res.Sources))
	}
	if res.Sources[0].StatusCode != 200 {
		t.Errorf("status = %d", res.Sources[0].StatusCode)
	}

	c := res.Content
	if c.Title != "Acme Plumbing | Boston's Trusted Plumbers" {
		t.Errorf("title = %q", c.Title)
	}
	if c.Description != "Family-owned plumbing since 1995." {
		t.Errorf("description = %q", c.Description)
	}
	if len(c.Headings) != 2 {
		t.Errorf("headings = %v", c.Headings)
	}
	if strings.Contains(c.BodyText, "should not appear") {
		t.Error("script content leaked into body text")
	}
	if !strings.Contains(c.BodyText, "Licensed and insured") {
		t.Errorf("body text missing visible copy: %q", c.BodyText)
	}
	// mailto links are dropped; relative links are resolved absolute.
	for _, l := range c.Links {
		if strings.HasPrefix(l, "mailto:") {
			t.Errorf("mailto link kept: %s", l)
		}
		if !strings.HasPrefix(l, "http") {
			t.Errorf("non-absolute link: %s", l)
		}
	}
	if c.Metadata["og:title"] != "Acme Plumbing" {
		t.Errorf("metadata = %v", c.Metadata)
	}
}

func TestScrape_404DoesNotRetry(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	s := New(Options{Rate: 1000, Burst: 1000})
	res := s.Scrape(context.Background(), srv.URL)

	if res.Success {
		t.Fatal("expected failure")
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1 (404 short-circuits)", hits)
	}
	if len(res.Sources) != 1 {
		t.Errorf("sources = %d, want 1", len(res.Sources))
	}
	if res.Sources[0].StatusCode != 404 {
		t.Errorf("status = %d", res.Sources[0].StatusCode)
	}
}

func TestScrape_500RetriesOnce(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Options{Rate: 1000, Burst: 1000})
	res := s.Scrape(context.Background(), srv.URL)

	if res.Success {
		t.Fatal("expected failure")
	}
	if hits != 2 {
		t.Errorf("hits = %d, want 2 (one retry)", hits)
	}
	if len(res.Sources) != 2 {
		t.Errorf("sources = %d, want one entry per attempt", len(res.Sources))
	}
}

func TestScrape_TimeoutRecordedAsRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := New(Options{AttemptTimeout: 20 * time.Millisecond, Rate: 1000, Burst: 1000})
	res := s.Scrape(context.Background(), srv.URL)

	if res.Success {
		t.Fatal("expected timeout failure")
	}
	for _, src := range res.Sources {
		if src.Error != "Request timeout" {
			t.Errorf("error = %q, want Request timeout", src.Error)
		}
	}
}

func TestScrape_NonHTMLRejectedWithoutRetry(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	s := New(Options{Rate: 1000, Burst: 1000})
	res := s.Scrape(context.Background(), srv.URL)

	if res.Success {
		t.Fatal("expected failure")
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
	if !strings.HasPrefix(res.Sources[0].Error, "Non-HTML content") {
		t.Errorf("error = %q", res.Sources[0].Error)
	}
}

func TestScrape_OversizedBodyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		chunk := strings.Repeat("x", 1<<20)
		for i := 0; i < 6; i++ {
			_, _ = w.Write([]byte(chunk))
		}
	}))
	defer srv.Close()

	s := New(Options{Rate: 1000, Burst: 1000})
	res := s.Scrape(context.Background(), srv.URL)

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Sources[0].Error != "Content exceeds maximum size" {
		t.Errorf("error = %q", res.Sources[0].Error)
	}
}

func TestScrape_RecordsRedirectTarget(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer final.Close()
	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer redirecting.Close()

	s := New(Options{Rate: 1000, Burst: 1000})
	res := s.Scrape(context.Background(), redirecting.URL)

	if !res.Success {
		t.Fatalf("scrape failed: %+v", res.Sources)
	}
	if res.Sources[0].RedirectTo != final.URL {
		t.Errorf("redirect_to = %q, want %q", res.Sources[0].RedirectTo, final.URL)
	}
}

func TestEnsureScheme(t *testing.T) {
	if got := ensureScheme("acme.com"); got != "https://acme.com" {
		t.Errorf("got %q", got)
	}
	if got := ensureScheme("http://acme.com"); got != "http://acme.com" {
		t.Errorf("got %q", got)
	}
}

func TestParseHTML_Caps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><head><title>T</title></head><body>")
	for i := 0; i < 30; i++ {
		b.WriteString("<h2>Heading</h2>")
	}
	for i := 0; i < 80; i++ {
		b.WriteString(`<a href="https://example.com/page">x</a>`)
	}
	b.WriteString("</body></html>")

	base, _ := url.Parse("https://example.com")
	c, err := ParseHTML([]byte(b.String()), base)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(c.Headings) > 20 {
		t.Errorf("headings = %d, want <= 20", len(c.Headings))
	}
	if len(c.Links) > 50 {
		t.Errorf("links = %d, want <= 50", len(c.Links))
	}
}
