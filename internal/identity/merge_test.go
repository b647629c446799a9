package identity

import (
	"context"
	"testing"

	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/store"
)

func TestMerge_CreatesNewContact(t *testing.T) {
	st := store.NewMemory()
	r := NewResolver(st)

	out, err := r.Merge(context.Background(), model.RawRecord{
		Email: "JOHN@ACME.com", CompanyName: "Acme Inc",
	}, "csv_import")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !out.IsNew {
		t.Error("expected new contact")
	}
	if out.Contact.EmailNorm != "john@acme.com" {
		t.Errorf("EmailNorm = %q", out.Contact.EmailNorm)
	}
	if len(out.Contact.Sources) != 1 || out.Contact.Sources[0] != "csv_import" {
		t.Errorf("Sources = %v", out.Contact.Sources)
	}
}

func TestMerge_MatchesByEmailAndFillsMissing(t *testing.T) {
	st := store.NewMemory()
	r := NewResolver(st)
	ctx := context.Background()

	first, err := r.Merge(ctx, model.RawRecord{Email: "john@acme.com", FirstName: "John"}, "csv_import")
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}

	second, err := r.Merge(ctx, model.RawRecord{
		Email: "JOHN@acme.com", Title: "Owner", FirstName: "Johnny",
	}, "csv_import")
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	if second.IsNew {
		t.Fatal("expected match, got new contact")
	}
	if second.MatchedBy != model.MatchEmail {
		t.Errorf("MatchedBy = %q", second.MatchedBy)
	}
	if second.Contact.ID != first.Contact.ID {
		t.Error("matched different contact")
	}
	// Empty title was filled.
	if second.Contact.Title != "Owner" {
		t.Errorf("Title = %q", second.Contact.Title)
	}
	// Existing first name was not overwritten.
	if second.Contact.FirstName != "John" {
		t.Errorf("FirstName = %q, no-loss merge violated", second.Contact.FirstName)
	}
	if st.ContactCount() != 1 {
		t.Errorf("contact count = %d, want 1", st.ContactCount())
	}
	// Same source is not duplicated in the set.
	if len(second.Contact.Sources) != 1 {
		t.Errorf("Sources = %v", second.Contact.Sources)
	}
}

func TestMerge_MatchPriorityDomainBeforePhone(t *testing.T) {
	st := store.NewMemory()
	r := NewResolver(st)
	ctx := context.Background()

	byDomain, err := r.Merge(ctx, model.RawRecord{Website: "acme.com"}, "a")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	byPhone, err := r.Merge(ctx, model.RawRecord{Phone: "(212) 555-1234"}, "a")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	// Record carrying both keys must resolve via domain.
	out, err := r.Merge(ctx, model.RawRecord{Website: "www.acme.com", Phone: "212-555-1234"}, "b")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out.MatchedBy != model.MatchDomain {
		t.Errorf("MatchedBy = %q, want domain", out.MatchedBy)
	}
	if out.Contact.ID != byDomain.Contact.ID {
		t.Error("matched wrong contact")
	}
	if out.Contact.ID == byPhone.Contact.ID {
		t.Error("phone match should have lower priority than domain")
	}
}

func TestMerge_CommutativeFieldSet(t *testing.T) {
	recA := model.RawRecord{Email: "jo@acme.com", FirstName: "Jo", City: "boston"}
	recB := model.RawRecord{Email: "jo@acme.com", LastName: "Smith", Title: "CEO"}

	final := func(first, second model.RawRecord) *model.Contact {
		st := store.NewMemory()
		r := NewResolver(st)
		ctx := context.Background()
		if _, err := r.Merge(ctx, first, "src"); err != nil {
			t.Fatalf("merge: %v", err)
		}
		out, err := r.Merge(ctx, second, "src")
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		return out.Contact
	}

	ab := final(recA, recB)
	ba := final(recB, recA)

	if ab.FirstName != ba.FirstName || ab.LastName != ba.LastName ||
		ab.Title != ba.Title || ab.City != ba.City || ab.EmailNorm != ba.EmailNorm {
		t.Errorf("merge not commutative: %+v vs %+v", ab, ba)
	}
}

func TestBatchDeduper_CompanyCityWeakMatch(t *testing.T) {
	d := NewBatchDeduper(true)

	dup, _, _ := d.Observe(model.RawRecord{CompanyName: "Acme Plumbing", City: "Boston"})
	if dup {
		t.Fatal("first record should not be a duplicate")
	}
	dup, first, matched := d.Observe(model.RawRecord{CompanyName: "acme  plumbing", City: "BOSTON"})
	if !dup {
		t.Fatal("expected company+city duplicate")
	}
	if first != 0 {
		t.Errorf("first index = %d", first)
	}
	if matched != model.MatchCompanyCity {
		t.Errorf("matched = %q", matched)
	}

	// Weak tier never fires when an email or phone is present.
	dup, _, _ = d.Observe(model.RawRecord{CompanyName: "Acme Plumbing", City: "Boston", Email: "x@acme.com"})
	if dup {
		t.Error("record with email must not weak-match")
	}
}

func TestBatchDeduper_DomainOnlyStillWeakMatches(t *testing.T) {
	d := NewBatchDeduper(true)

	// A website without email or phone does not exempt the record from the
	// company+city tier.
	dup, _, _ := d.Observe(model.RawRecord{CompanyName: "Acme Plumbing", City: "Boston", Website: "https://acme-plumbing.com"})
	if dup {
		t.Fatal("first record should not be a duplicate")
	}
	dup, first, matched := d.Observe(model.RawRecord{CompanyName: "Acme Plumbing", City: "Boston"})
	if !dup {
		t.Fatal("expected company+city duplicate against domain-only record")
	}
	if first != 0 {
		t.Errorf("first index = %d", first)
	}
	if matched != model.MatchCompanyCity {
		t.Errorf("matched = %q", matched)
	}
}

func TestBatchDeduper_Disabled(t *testing.T) {
	d := NewBatchDeduper(false)
	d.Observe(model.RawRecord{CompanyName: "Acme", City: "Boston"})
	dup, _, _ := d.Observe(model.RawRecord{CompanyName: "Acme", City: "Boston"})
	if dup {
		t.Error("company+city tier should be off")
	}
}

func TestBatchDeduper_HashMatch(t *testing.T) {
	d := NewBatchDeduper(true)
	d.Observe(model.RawRecord{Email: "john@acme.com"})
	dup, first, matched := d.Observe(model.RawRecord{Email: "JOHN@ACME.COM"})
	if !dup || first != 0 || matched != model.MatchEmail {
		t.Errorf("dup=%v first=%d matched=%q", dup, first, matched)
	}
}
