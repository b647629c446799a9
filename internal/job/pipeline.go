package job

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/discovery"
	"github.com/sells-group/leadenrich/internal/identity"
	"github.com/sells-group/leadenrich/internal/intel"
	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/personalize"
	"github.com/sells-group/leadenrich/internal/resilience"
	"github.com/sells-group/leadenrich/internal/score"
	"github.com/sells-group/leadenrich/internal/scrape"
	"github.com/sells-group/leadenrich/internal/store"
)

// Enrichment carries the output of one full pipeline pass over a record.
type Enrichment struct {
	Outcome         *model.MergeOutcome
	Scrape          *model.ScrapeResult
	Intel           model.BusinessIntelligence
	Personalization model.Personalization
	Confidence      model.Confidence
	Quality         int
}

// Enricher runs the enrichment stages for a single record. The processor
// retries per the returned error's kind.
type Enricher interface {
	Enrich(ctx context.Context, raw model.RawRecord, source string) (*Enrichment, error)
}

// Pipeline is the production Enricher: normalize/merge, scrape, extract,
// personalize, score. Discoverer and polisher are optional stages.
type Pipeline struct {
	store      store.Store
	resolver   *identity.Resolver
	scraper    *scrape.Scraper
	discoverer *discovery.Discoverer
	polisher   *personalize.Polisher
	breakers   *resilience.BreakerSet
	log        *zap.Logger
}

// NewPipeline wires the enrichment stages. discoverer and polisher may be nil.
func NewPipeline(
	st store.Store,
	resolver *identity.Resolver,
	scraper *scrape.Scraper,
	discoverer *discovery.Discoverer,
	polisher *personalize.Polisher,
	breakers *resilience.BreakerSet,
	log *zap.Logger,
) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:      st,
		resolver:   resolver,
		scraper:    scraper,
		discoverer: discoverer,
		polisher:   polisher,
		breakers:   breakers,
		log:        log,
	}
}

// Enrich runs the full stage chain. Scrape failures do not fail the record;
// they flow into the confidence score instead. Storage failures do.
func (p *Pipeline) Enrich(ctx context.Context, raw model.RawRecord, source string) (*Enrichment, error) {
	if raw.Email == "" && raw.Phone == "" && raw.Website == "" && raw.CompanyName == "" {
		return nil, ValidationError("record has no usable identifier (email, phone, website, or company name)")
	}

	outcome, err := p.resolver.Merge(ctx, raw, source)
	if err != nil {
		return nil, DatabaseError(err, "merge contact")
	}

	result := p.scrapeWebsite(ctx, raw)

	bi := intel.Extract(result, raw)
	pers := personalize.Generate(bi, result, raw)
	pers = p.polisher.Polish(ctx, pers, bi)
	conf := score.Confidence(result, bi, raw)

	contact := outcome.Contact
	contact.QualityScore = score.Quality(*contact)
	if err := p.store.UpdateContact(ctx, contact); err != nil {
		return nil, DatabaseError(err, "persist quality score")
	}

	if contact.Company != "" {
		company := model.Company{
			Name:     contact.Company,
			Domain:   contact.DomainNorm,
			Industry: bi.Industry,
			City:     contact.City,
			State:    contact.State,
		}
		if _, err := p.store.UpsertCompany(ctx, company); err != nil {
			return nil, DatabaseError(err, "upsert company")
		}
	}

	return &Enrichment{
		Outcome:         outcome,
		Scrape:          result,
		Intel:           bi,
		Personalization: pers,
		Confidence:      conf,
		Quality:         contact.QualityScore,
	}, nil
}

// scrapeWebsite resolves a URL (given or discovered) and scrapes it behind
// the scrape circuit breaker. A nil return means no URL was available.
func (p *Pipeline) scrapeWebsite(ctx context.Context, raw model.RawRecord) *model.ScrapeResult {
	target := raw.Website
	if target == "" && p.discoverer != nil && raw.CompanyName != "" {
		target = p.discoverer.Discover(ctx, raw.CompanyName)
	}
	if target == "" {
		return nil
	}

	var result *model.ScrapeResult
	run := func(ctx context.Context) error {
		result = p.scraper.Scrape(ctx, target)
		if !result.Success && scrape.IsTransientFailure(result) {
			return eris.New("scrape failed: " + result.LastError())
		}
		return nil
	}
	fallback := func(ctx context.Context) error {
		result = &model.ScrapeResult{
			Success: false,
			Sources: []model.ScrapeSource{{URL: target, Error: resilience.ErrOpen.Error()}},
		}
		return nil
	}

	if p.breakers != nil {
		_ = p.breakers.Get("scrape").Execute(ctx, run, fallback)
	} else {
		_ = run(ctx)
	}
	return result
}
