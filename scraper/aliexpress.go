package scraper

import (
	"context"
	"log/slog"

	"pricescout/extract"
	"pricescout/models"
)

// AliExpressAdapter scrapes aliexpress.com listings. The site serves
// lazy-loaded images and scheme-relative links, so image lookups fall back
// to data-src and every URL is resolved against the search page.
type AliExpressAdapter struct {
	siteBase
}

// NewAliExpressAdapter builds the AliExpress adapter.
func NewAliExpressAdapter(extractor extract.Extractor, cfg AdapterConfig) *AliExpressAdapter {
	return &AliExpressAdapter{siteBase: newSiteBase("aliexpress", extractor, cfg)}
}

func (a *AliExpressAdapter) ScrapeProduct(ctx context.Context, pageURL string) (*models.ProductRecord, error) {
	return a.scrapeProductPage(ctx, pageURL, "Available")
}

func (a *AliExpressAdapter) Search(ctx context.Context, query string, maxResults int) ([]models.ProductRecord, error) {
	items, err := a.searchCandidates(ctx, query, "[data-product-id], .list-item", maxResults)
	if err != nil {
		return nil, err
	}

	titleSelector := "a[title], .title a, h1"

	records := make([]models.ProductRecord, 0, len(items))
	for _, item := range items {
		// The title attribute holds the full name; element text is often
		// truncated.
		title := item.Attr(titleSelector, "title")
		if title == "" {
			title = item.Text(titleSelector)
		}
		if title == "" {
			continue
		}

		productURL := item.Attr(titleSelector, "href")
		if productURL == "" {
			productURL = item.Attr("a", "href")
		}
		productURL = item.AbsoluteURL(productURL)

		priceText := item.Text(`.price-current, .mGXnE_item, [class*="price"]`)
		if priceText == "" {
			priceText = "0"
		}

		imageURL := item.Attr("img", "src")
		if imageURL == "" {
			imageURL = item.Attr("img", "data-src")
		}
		imageURL = item.AbsoluteURL(imageURL)

		record := a.buildRecord(title, priceText, productURL, imageURL, "Available")
		if record == nil {
			continue
		}
		records = append(records, *record)
	}

	a.logger.Info("search complete", slog.String("query", query), slog.Int("results", len(records)))
	return records, nil
}
