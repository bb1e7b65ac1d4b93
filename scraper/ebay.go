package scraper

import (
	"context"
	"log/slog"
	"strings"

	"pricescout/extract"
	"pricescout/models"
)

// EbayAdapter scrapes ebay.com listings. Search results cover both the
// current srp layout (.s-item) and the legacy list view (.lvresult).
type EbayAdapter struct {
	siteBase
}

// NewEbayAdapter builds the eBay adapter.
func NewEbayAdapter(extractor extract.Extractor, cfg AdapterConfig) *EbayAdapter {
	return &EbayAdapter{siteBase: newSiteBase("ebay", extractor, cfg)}
}

func (a *EbayAdapter) ScrapeProduct(ctx context.Context, pageURL string) (*models.ProductRecord, error) {
	return a.scrapeProductPage(ctx, pageURL, "Available")
}

func (a *EbayAdapter) Search(ctx context.Context, query string, maxResults int) ([]models.ProductRecord, error) {
	items, err := a.searchCandidates(ctx, query, ".s-item, .lvresult", maxResults)
	if err != nil {
		return nil, err
	}

	records := make([]models.ProductRecord, 0, len(items))
	for _, item := range items {
		// Sponsored slots carry a tag element inside the title.
		if item.Has(".s-item__title--tag") {
			continue
		}

		title := item.Text(".s-item__title, .lvtitle a")
		if title == "" || strings.Contains(title, "Shop on eBay") {
			continue
		}

		productURL := item.AbsoluteURL(item.Attr(".s-item__link, .lvtitle a", "href"))
		priceText := item.Text(".s-item__price, .lvprice .prc")
		if priceText == "" {
			priceText = "0"
		}
		imageURL := item.AbsoluteURL(item.Attr(".s-item__image-img, img.img", "src"))

		record := a.buildRecord(title, priceText, productURL, imageURL, "Available")
		if record == nil {
			continue
		}
		records = append(records, *record)
	}

	a.logger.Info("search complete", slog.String("query", query), slog.Int("results", len(records)))
	return records, nil
}
