package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeProber struct {
	mu     sync.Mutex
	live   map[string]int
	probed []string
}

func (f *fakeProber) Head(_ context.Context, rawURL string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, rawURL)
	if status, ok := f.live[rawURL]; ok {
		return status, nil
	}
	return 0, errors.New("no such host")
}

func TestCandidates(t *testing.T) {
	got := Candidates("Acme Plumbing LLC")
	want := map[string]bool{
		"acmeplumbing.com":  true,
		"acme-plumbing.com": true,
		"acme.com":          true,
	}
	for _, d := range got {
		delete(want, d)
	}
	if len(want) != 0 {
		t.Errorf("missing candidates %v in %v", want, got)
	}
}

func TestCandidates_Empty(t *testing.T) {
	if got := Candidates(""); got != nil {
		t.Errorf("got %v", got)
	}
	if got := Candidates("LLC Inc Corp"); got != nil {
		t.Errorf("stop words only should yield nothing, got %v", got)
	}
}

func TestDiscover_FirstVerifiedWins(t *testing.T) {
	p := &fakeProber{live: map[string]int{
		"https://acme-plumbing.com": 200,
		"https://acmeplumbing.com":  200,
	}}
	d := New(p, 2)

	got := d.Discover(context.Background(), "Acme Plumbing")
	// acmeplumbing.com is generated first, so it must win even though both
	// candidates verify.
	if got != "https://acmeplumbing.com" {
		t.Errorf("got %q", got)
	}
}

func TestDiscover_NothingAnswers(t *testing.T) {
	d := New(&fakeProber{}, 2)
	if got := d.Discover(context.Background(), "Acme Plumbing"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestDiscover_RedirectCountsAsVerified(t *testing.T) {
	p := &fakeProber{live: map[string]int{"https://acme.com": 301}}
	d := New(p, 2)
	if got := d.Discover(context.Background(), "Acme"); got != "https://acme.com" {
		t.Errorf("got %q", got)
	}
}

func TestDiscover_ServerErrorNotVerified(t *testing.T) {
	p := &fakeProber{live: map[string]int{"https://acme.com": 500}}
	d := New(p, 2)
	if got := d.Discover(context.Background(), "Acme"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
