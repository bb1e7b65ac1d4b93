package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pricescout/aggregate"
	"pricescout/config"
	"pricescout/extract"
	"pricescout/models"
)

// defaultMaxResults is the per-site result budget used by the query-level
// conveniences when the caller does not pick one.
const defaultMaxResults = 10

var (
	// ErrUnknownSite rejects routing to a site with no registered adapter.
	ErrUnknownSite = errors.New("unknown site")
	// ErrNoSites signals a subset search whose site list matched nothing.
	ErrNoSites = errors.New("no known sites requested")
	// ErrNoAdapters signals a configuration with zero usable sites.
	ErrNoAdapters = errors.New("no adapters enabled")
)

// Orchestrator fans queries out across registered site adapters with a
// bounded degree of parallelism.
type Orchestrator struct {
	mu       sync.RWMutex
	adapters map[string]SiteAdapter
	parallel int

	Metrics *Metrics
}

// NewOrchestrator builds an empty orchestrator; use Register to add
// adapters. parallel bounds concurrent site searches.
func NewOrchestrator(parallel int, metrics *Metrics) *Orchestrator {
	if parallel <= 0 {
		parallel = 5
	}
	return &Orchestrator{
		adapters: make(map[string]SiteAdapter),
		parallel: parallel,
		Metrics:  metrics,
	}
}

var adapterFactories = map[string]func(extract.Extractor, AdapterConfig) SiteAdapter{
	"ebay":       func(x extract.Extractor, cfg AdapterConfig) SiteAdapter { return NewEbayAdapter(x, cfg) },
	"walmart":    func(x extract.Extractor, cfg AdapterConfig) SiteAdapter { return NewWalmartAdapter(x, cfg) },
	"target":     func(x extract.Extractor, cfg AdapterConfig) SiteAdapter { return NewTargetAdapter(x, cfg) },
	"aliexpress": func(x extract.Extractor, cfg AdapterConfig) SiteAdapter { return NewAliExpressAdapter(x, cfg) },
}

// NewFromConfig wires one adapter per enabled site. Enabled sites without
// a known adapter are logged and skipped; zero usable sites is an error.
func NewFromConfig(cfg *config.Config) (*Orchestrator, error) {
	metrics := NewMetrics()
	o := NewOrchestrator(cfg.Scraper.ConcurrentRequests, metrics)

	for _, name := range cfg.EnabledSites() {
		factory, ok := adapterFactories[name]
		if !ok {
			slog.Warn("no adapter for site", slog.String("site", name))
			continue
		}

		extractor, err := extract.NewHTTPExtractor(extract.Options{
			UserAgent:     cfg.SiteUserAgent(name),
			Timeout:       cfg.SiteTimeout(name),
			RespectRobots: cfg.Scraper.RespectRobotsTxt,
		})
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", name, err)
		}

		o.Register(factory(extractor, AdapterConfig{
			SearchURL:  cfg.Sites[name].SearchURL,
			Selectors:  cfg.Sites[name].Selectors,
			RateDelay:  cfg.SiteRateLimit(name),
			MaxRetries: cfg.Scraper.MaxRetries,
			Backoff:    cfg.Scraper.RetryBackoffDuration(),
			BackoffMax: cfg.Scraper.RetryBackoffMaxDuration(),
			Metrics:    metrics,
		}))
		slog.Info("adapter initialized", slog.String("site", name))
	}

	if len(o.adapters) == 0 {
		return nil, ErrNoAdapters
	}
	return o, nil
}

// Register adds an adapter, replacing any previous one with the same
// identifier.
func (o *Orchestrator) Register(adapter SiteAdapter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.adapters[adapter.Identifier()] = adapter
}

// SearchAll queries every registered adapter concurrently. The returned
// map has exactly one entry per registered site; failures are recorded on
// the entry, never returned as an error.
func (o *Orchestrator) SearchAll(ctx context.Context, query string, maxPerSite int) map[string]models.SiteResult {
	return o.run(ctx, query, o.registered(), maxPerSite)
}

// SearchSubset is SearchAll restricted to the named sites. Unknown and
// duplicate names are dropped; when nothing remains, ErrNoSites.
func (o *Orchestrator) SearchSubset(ctx context.Context, query string, sites []string, maxPerSite int) (map[string]models.SiteResult, error) {
	o.mu.RLock()
	selected := make([]SiteAdapter, 0, len(sites))
	seen := make(map[string]bool, len(sites))
	for _, name := range sites {
		if seen[name] {
			continue
		}
		seen[name] = true
		if adapter, ok := o.adapters[name]; ok {
			selected = append(selected, adapter)
		}
	}
	o.mu.RUnlock()

	if len(selected) == 0 {
		return nil, ErrNoSites
	}
	return o.run(ctx, query, selected, maxPerSite), nil
}

// SearchAllCombined searches every site and returns one flattened list
// sorted by price, cheapest first, unpriced records last.
func (o *Orchestrator) SearchAllCombined(ctx context.Context, query string, maxPerSite int) []models.ProductRecord {
	return aggregate.Combine(o.SearchAll(ctx, query, maxPerSite))
}

// SearchSubsetCombined is SearchAllCombined restricted to the named sites.
func (o *Orchestrator) SearchSubsetCombined(ctx context.Context, query string, sites []string, maxPerSite int) ([]models.ProductRecord, error) {
	results, err := o.SearchSubset(ctx, query, sites, maxPerSite)
	if err != nil {
		return nil, err
	}
	return aggregate.Combine(results), nil
}

// ScrapeURL routes a single product URL to the adapter for site.
func (o *Orchestrator) ScrapeURL(ctx context.Context, pageURL, site string) (*models.ProductRecord, error) {
	o.mu.RLock()
	adapter, ok := o.adapters[site]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, site)
	}
	return adapter.ScrapeProduct(ctx, pageURL)
}

// BestDeals returns the topN cheapest positively priced records for query.
func (o *Orchestrator) BestDeals(ctx context.Context, query string, topN int) []models.ProductRecord {
	return aggregate.BestDeals(o.SearchAllCombined(ctx, query, defaultMaxResults), topN)
}

// ComparePrices aggregates price statistics for query across all sites.
func (o *Orchestrator) ComparePrices(ctx context.Context, query string) models.AggregateReport {
	return aggregate.Compare(query, o.SearchAllCombined(ctx, query, defaultMaxResults))
}

// Sites returns the registered site identifiers in sorted order.
func (o *Orchestrator) Sites() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.adapters))
	for name := range o.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *Orchestrator) registered() []SiteAdapter {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]SiteAdapter, 0, len(o.adapters))
	for _, adapter := range o.adapters {
		out = append(out, adapter)
	}
	return out
}

// run dispatches one search task per adapter, bounded by a semaphore, and
// joins them all. A panicking or failing adapter poisons only its own
// entry.
func (o *Orchestrator) run(ctx context.Context, query string, adapters []SiteAdapter, maxPerSite int) map[string]models.SiteResult {
	logger := slog.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("query", query),
	)
	logger.Info("search dispatch", slog.Int("sites", len(adapters)))

	var (
		mu      sync.Mutex
		results = make(map[string]models.SiteResult, len(adapters))
	)

	sem := make(chan struct{}, o.parallel)
	var wg sync.WaitGroup

	for _, adapter := range adapters {
		adapter := adapter
		wg.Add(1)
		go func() {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			site := adapter.Identifier()
			result := models.SiteResult{Site: site, Products: []models.ProductRecord{}}

			func() {
				defer func() {
					if r := recover(); r != nil {
						result.Error = fmt.Sprintf("panic: %v", r)
						result.ErrorKind = "panic"
						logger.Error("adapter panic", slog.String("site", site), slog.Any("panic", r))
					}
				}()

				products, err := adapter.Search(ctx, query, maxPerSite)
				if err != nil {
					result.Error = err.Error()
					result.ErrorKind = extract.ErrorKind(err)
					logger.Error("site search failed", slog.String("site", site), slog.Any("error", err))
					return
				}
				result.Products = products
			}()

			mu.Lock()
			results[site] = result
			mu.Unlock()
		}()
	}

	wg.Wait()
	logger.Info("search joined", slog.Int("sites", len(results)))
	return results
}
