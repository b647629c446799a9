// Package discovery guesses and verifies candidate website domains for
// records that arrive without one.
package discovery

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadenrich/internal/normalize"
)

// Prober verifies that a URL answers. Satisfied by fetch.HTTPClient.
type Prober interface {
	Head(ctx context.Context, rawURL string) (int, error)
}

// Discoverer generates candidate domains from a company name and verifies
// them with bounded parallel HEAD probes.
type Discoverer struct {
	prober   Prober
	maxProbe int
}

// New creates a Discoverer. maxParallel bounds concurrent probes (default 4).
func New(prober Prober, maxParallel int) *Discoverer {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Discoverer{prober: prober, maxProbe: maxParallel}
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]`)

// stopWords are dropped from company names before candidate generation.
var stopWords = map[string]bool{
	"llc": true, "inc": true, "corp": true, "co": true, "ltd": true,
	"company": true, "the": true, "and": true, "of": true,
}

// Candidates returns plausible domains for a company name, most likely first.
func Candidates(companyName string) []string {
	key := normalize.Company(companyName)
	if key == "" {
		return nil
	}

	var words []string
	for _, w := range strings.Fields(key) {
		w = nonAlnumRe.ReplaceAllString(w, "")
		if w == "" || stopWords[w] {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil
	}

	joined := strings.Join(words, "")
	if len(joined) > 40 {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}

	add(joined + ".com")
	if len(words) > 1 {
		add(strings.Join(words, "-") + ".com")
		add(words[0] + ".com")
	}
	add(joined + ".net")
	add("get" + joined + ".com")
	return out
}

// Discover probes the candidates for a company name and returns the first
// verified website URL, or "" when nothing answers. Candidate order is
// preserved: a lower-priority candidate only wins if every candidate ahead of
// it failed.
func (d *Discoverer) Discover(ctx context.Context, companyName string) string {
	candidates := Candidates(companyName)
	if len(candidates) == 0 {
		return ""
	}

	verified := make([]bool, len(candidates))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxProbe)
	for i, domain := range candidates {
		g.Go(func() error {
			status, err := d.prober.Head(gCtx, "https://"+domain)
			if err != nil {
				return nil // unreachable candidates are simply skipped
			}
			if statusVerified(status) {
				mu.Lock()
				verified[i] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, ok := range verified {
		if ok {
			site := "https://" + candidates[i]
			zap.L().Debug("discovery: verified domain",
				zap.String("company", companyName),
				zap.String("website", site),
			)
			return site
		}
	}
	return ""
}

// statusVerified reports whether a probe status counts as a live site.
func statusVerified(status int) bool {
	return status >= http.StatusOK && status < http.StatusBadRequest
}
