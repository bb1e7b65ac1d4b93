package scraper

import (
	"context"
	"log/slog"

	"pricescout/extract"
	"pricescout/models"
)

// TargetAdapter scrapes target.com listings.
type TargetAdapter struct {
	siteBase
}

// NewTargetAdapter builds the Target adapter.
func NewTargetAdapter(extractor extract.Extractor, cfg AdapterConfig) *TargetAdapter {
	return &TargetAdapter{siteBase: newSiteBase("target", extractor, cfg)}
}

func (a *TargetAdapter) ScrapeProduct(ctx context.Context, pageURL string) (*models.ProductRecord, error) {
	return a.scrapeProductPage(ctx, pageURL, "Check site")
}

func (a *TargetAdapter) Search(ctx context.Context, query string, maxResults int) ([]models.ProductRecord, error) {
	items, err := a.searchCandidates(ctx, query, `[data-test="@web/site-top-of-funnel/ProductCardWrapper"]`, maxResults)
	if err != nil {
		return nil, err
	}

	titleSelector := `a[data-test="product-title"], .h-text-bs`

	records := make([]models.ProductRecord, 0, len(items))
	for _, item := range items {
		title := item.Text(titleSelector)
		if title == "" {
			continue
		}

		productURL := item.AbsoluteURL(item.Attr(titleSelector, "href"))
		priceText := item.Text(`[data-test="current-price"], .h-text-sm`)
		if priceText == "" {
			priceText = "0"
		}
		imageURL := item.AbsoluteURL(item.Attr(`img[data-test="product-image"]`, "src"))

		record := a.buildRecord(title, priceText, productURL, imageURL, "Check site")
		if record == nil {
			continue
		}
		records = append(records, *record)
	}

	a.logger.Info("search complete", slog.String("query", query), slog.Int("results", len(records)))
	return records, nil
}
