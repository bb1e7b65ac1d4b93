package scraper

import (
	"context"
	"log/slog"

	"pricescout/extract"
	"pricescout/models"
)

// WalmartAdapter scrapes walmart.com listings. Walmart rotates between
// grid and list layouts, so the item selector tries all known containers.
type WalmartAdapter struct {
	siteBase
}

// NewWalmartAdapter builds the Walmart adapter.
func NewWalmartAdapter(extractor extract.Extractor, cfg AdapterConfig) *WalmartAdapter {
	return &WalmartAdapter{siteBase: newSiteBase("walmart", extractor, cfg)}
}

func (a *WalmartAdapter) ScrapeProduct(ctx context.Context, pageURL string) (*models.ProductRecord, error) {
	return a.scrapeProductPage(ctx, pageURL, "Check site")
}

func (a *WalmartAdapter) Search(ctx context.Context, query string, maxResults int) ([]models.ProductRecord, error) {
	items, err := a.searchCandidates(ctx, query, `[data-item-id], .search-result-gridview-item, [data-testid="list-view"]`, maxResults)
	if err != nil {
		return nil, err
	}

	// Title and link come from the same anchor.
	titleSelector := `a[link-identifier], .product-title-link, [data-automation-id="product-title"]`

	records := make([]models.ProductRecord, 0, len(items))
	for _, item := range items {
		title := item.Text(titleSelector)
		if title == "" {
			continue
		}

		productURL := item.AbsoluteURL(item.Attr(titleSelector, "href"))
		priceText := item.Text(`[data-automation-id="product-price"], .price-main .price-characteristic`)
		if priceText == "" {
			priceText = "0"
		}
		imageURL := item.AbsoluteURL(item.Attr(`img[data-testid="productTileImage"], .product-image img`, "src"))

		record := a.buildRecord(title, priceText, productURL, imageURL, "Check site")
		if record == nil {
			continue
		}
		records = append(records, *record)
	}

	a.logger.Info("search complete", slog.String("query", query), slog.Int("results", len(records)))
	return records, nil
}
