package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"pricescout/extract"
	"pricescout/models"
	"pricescout/parser"
)

// ErrInvalidURL rejects product URLs that fail syntactic validation before
// any request is made.
var ErrInvalidURL = errors.New("invalid product url")

// SiteAdapter scrapes one retail site.
type SiteAdapter interface {
	// Identifier returns the lowercase site key used in configs, result
	// maps and metrics labels.
	Identifier() string
	// ScrapeProduct fetches and extracts a single product page. It returns
	// (nil, nil) when the page was fetched but no valid record could be
	// extracted from it.
	ScrapeProduct(ctx context.Context, pageURL string) (*models.ProductRecord, error)
	// Search runs a query against the site and returns up to maxResults
	// records. Items that fail extraction are skipped, not errors.
	Search(ctx context.Context, query string, maxResults int) ([]models.ProductRecord, error)
}

// AdapterConfig carries the per-site knobs shared by every adapter.
type AdapterConfig struct {
	// SearchURL is the search URL template with a {query} placeholder.
	SearchURL string
	// Selectors hold the product-page lookup rules, keyed by field name
	// (title, price, image, availability).
	Selectors map[string]string

	RateDelay  time.Duration
	MaxRetries int
	Backoff    time.Duration
	BackoffMax time.Duration

	Metrics *Metrics
}

// siteBase implements the fetch, retry and record plumbing shared by the
// site adapters.
type siteBase struct {
	name      string
	searchFmt string
	selectors map[string]string
	extractor extract.Extractor
	limiter   *rateLimiter

	maxRetries int
	backoff    time.Duration
	backoffMax time.Duration

	metrics *Metrics
	logger  *slog.Logger
}

func newSiteBase(name string, extractor extract.Extractor, cfg AdapterConfig) siteBase {
	return siteBase{
		name:       name,
		searchFmt:  cfg.SearchURL,
		selectors:  cfg.Selectors,
		extractor:  extractor,
		limiter:    newRateLimiter(cfg.RateDelay),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		backoffMax: cfg.BackoffMax,
		metrics:    cfg.Metrics,
		logger:     slog.With(slog.String("site", name)),
	}
}

func (b *siteBase) Identifier() string {
	return b.name
}

// fetchPage fetches pageURL with rate limiting and exponential backoff
// between attempts. The rate limiter gates every attempt, not just the
// first one.
func (b *siteBase) fetchPage(ctx context.Context, pageURL string) (*extract.Page, error) {
	attempts := b.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		b.metrics.IncRequest(b.name)
		start := time.Now()
		page, err := b.extractor.FetchPage(ctx, pageURL)
		if err == nil {
			b.metrics.ObserveDuration(b.name, time.Since(start))
			return page, nil
		}

		lastErr = err
		b.metrics.IncError(b.name, extract.ErrorKind(err))
		b.logger.Error("fetch failed",
			slog.String("url", pageURL),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		if ctx.Err() != nil {
			return nil, lastErr
		}
		if attempt < attempts {
			b.metrics.IncRetries(b.name)
			if err := sleepBackoff(ctx, b.backoffDelay(attempt)); err != nil {
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

func (b *siteBase) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := b.backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := b.backoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *siteBase) searchURL(query string) string {
	return strings.ReplaceAll(b.searchFmt, "{query}", url.QueryEscape(query))
}

// buildRecord normalizes raw field text into a validated record. Returns
// nil when validation rejects the record.
func (b *siteBase) buildRecord(title, priceText, pageURL, imageURL, availability string) *models.ProductRecord {
	price := parser.NormalizePrice(priceText)
	record := &models.ProductRecord{
		Title:        parser.SanitizeText(title),
		Price:        price,
		Currency:     parser.ExtractCurrency(priceText),
		URL:          pageURL,
		ImageURL:     imageURL,
		Availability: availability,
		Site:         b.name,
		ScrapedAt:    time.Now().UTC(),
	}

	if !parser.ValidateProduct(record) {
		b.metrics.IncRejected(b.name)
		b.logger.Debug("record rejected",
			slog.String("title", record.Title),
			slog.String("url", record.URL),
		)
		return nil
	}

	b.metrics.IncItems(b.name)
	return record
}

// scrapeProductPage implements the single-page flow shared by all sites:
// validate URL, fetch, pull the configured selectors, normalize.
func (b *siteBase) scrapeProductPage(ctx context.Context, pageURL, fallbackAvailability string) (*models.ProductRecord, error) {
	if !parser.ValidateURL(pageURL) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, pageURL)
	}

	b.logger.Info("scraping product", slog.String("url", pageURL))

	page, err := b.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title := page.Text(b.selectors["title"])
	priceText := page.Text(b.selectors["price"])
	imageURL := page.AbsoluteURL(page.Attr(b.selectors["image"], "src"))
	availability := page.Text(b.selectors["availability"])
	if availability == "" {
		availability = fallbackAvailability
	}

	record := b.buildRecord(title, priceText, pageURL, imageURL, availability)
	if record == nil {
		return nil, nil
	}

	b.logger.Info("scraped product", slog.String("title", record.Title))
	return record, nil
}

// searchCandidates fetches the search page for query and returns the first
// maxResults item blocks. Filtering happens after the cut, so skipped
// blocks still consume budget.
func (b *siteBase) searchCandidates(ctx context.Context, query, itemsSelector string, maxResults int) ([]*extract.Page, error) {
	b.logger.Info("searching", slog.String("query", query))

	page, err := b.fetchPage(ctx, b.searchURL(query))
	if err != nil {
		return nil, err
	}

	items := page.Select(itemsSelector)
	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}
	return items, nil
}
