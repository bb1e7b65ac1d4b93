package scraper

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"

	"pricescout/extract"
)

const ebaySearchPage = `<html><body><ul>
	<li class="s-item">
		<span class="s-item__title--tag">SPONSORED</span>
		<div class="s-item__title">Sponsored Widget</div>
		<a class="s-item__link" href="https://www.ebay.com/itm/1"></a>
		<span class="s-item__price">$5.00</span>
	</li>
	<li class="s-item">
		<div class="s-item__title">Shop on eBay</div>
		<a class="s-item__link" href="https://www.ebay.com/itm/2"></a>
		<span class="s-item__price">$1.00</span>
	</li>
	<li class="s-item">
		<div class="s-item__title">Wireless Mouse</div>
		<a class="s-item__link" href="/itm/3"></a>
		<span class="s-item__price">$19.99</span>
		<img class="s-item__image-img" src="//cdn.shop.test/3.jpg">
	</li>
</ul></body></html>`

func searchTransport(t *testing.T, query, body string) http.RoundTripper {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/search?q="+query, htmlResponder(body))
	return transport
}

func TestEbaySearchFiltersPlaceholders(t *testing.T) {
	a := newTestAdapter(t, searchTransport(t, "mouse", ebaySearchPage), testAdapterConfig())

	records, err := a.Search(context.Background(), "mouse", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1 (sponsored and placeholder skipped)", len(records))
	}

	rec := records[0]
	if rec.Title != "Wireless Mouse" {
		t.Fatalf("title=%q, want %q", rec.Title, "Wireless Mouse")
	}
	if !rec.Price.Equal(decimalFromString(t, "19.99")) {
		t.Fatalf("price=%v, want 19.99", rec.Price)
	}
	if rec.URL != "http://shop.test/itm/3" {
		t.Fatalf("url=%q, want resolved relative link", rec.URL)
	}
	if rec.ImageURL != "http://cdn.shop.test/3.jpg" {
		t.Fatalf("image=%q, want resolved scheme-relative link", rec.ImageURL)
	}
	if rec.Availability != "Available" {
		t.Fatalf("availability=%q, want Available", rec.Availability)
	}
	if rec.Site != "ebay" {
		t.Fatalf("site=%q, want ebay", rec.Site)
	}
}

func TestEbaySearchBudgetCountsSkippedItems(t *testing.T) {
	a := newTestAdapter(t, searchTransport(t, "mouse", ebaySearchPage), testAdapterConfig())

	// The first two candidates are skips; a budget of 2 never reaches the
	// real listing.
	records, err := a.Search(context.Background(), "mouse", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records=%d, want 0", len(records))
	}
}

func newSiteAdapter(t *testing.T, factoryName, query, body string) SiteAdapter {
	t.Helper()
	extractor, err := extract.NewHTTPExtractor(extract.Options{
		UserAgent: "pricescout-test",
		Timeout:   0,
		Transport: searchTransport(t, query, body),
	})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	factory, ok := adapterFactories[factoryName]
	if !ok {
		t.Fatalf("no factory for %q", factoryName)
	}
	return factory(extractor, testAdapterConfig())
}

func TestWalmartSearch(t *testing.T) {
	page := `<html><body>
		<div data-item-id="100">
			<a link-identifier="l1" href="/ip/keyboard-100">Budget Keyboard</a>
			<span data-automation-id="product-price">$29.99</span>
			<img data-testid="productTileImage" src="https://i.shop.test/kb.jpg">
		</div>
		<div data-item-id="101">
			<span>no title anchor, skipped</span>
		</div>
	</body></html>`

	a := newSiteAdapter(t, "walmart", "keyboard", page)

	records, err := a.Search(context.Background(), "keyboard", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}

	rec := records[0]
	if rec.Title != "Budget Keyboard" {
		t.Fatalf("title=%q", rec.Title)
	}
	if !rec.Price.Equal(decimalFromString(t, "29.99")) {
		t.Fatalf("price=%v, want 29.99", rec.Price)
	}
	if rec.URL != "http://shop.test/ip/keyboard-100" {
		t.Fatalf("url=%q", rec.URL)
	}
	if rec.Availability != "Check site" {
		t.Fatalf("availability=%q, want Check site", rec.Availability)
	}
	if rec.Site != "walmart" {
		t.Fatalf("site=%q, want walmart", rec.Site)
	}
}

func TestTargetSearchTakesFirstPriceOfRange(t *testing.T) {
	page := `<html><body>
		<div data-test="@web/site-top-of-funnel/ProductCardWrapper">
			<a data-test="product-title" href="/p/lamp-7">Desk Lamp</a>
			<span data-test="current-price">$15.00 - $25.00</span>
			<img data-test="product-image" src="/img/lamp.jpg">
		</div>
	</body></html>`

	a := newSiteAdapter(t, "target", "lamp", page)

	records, err := a.Search(context.Background(), "lamp", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}

	rec := records[0]
	if !rec.Price.Equal(decimalFromString(t, "15.00")) {
		t.Fatalf("price=%v, want 15.00 (first of range)", rec.Price)
	}
	if rec.URL != "http://shop.test/p/lamp-7" {
		t.Fatalf("url=%q", rec.URL)
	}
	if rec.Site != "target" {
		t.Fatalf("site=%q, want target", rec.Site)
	}
}

func TestAliExpressSearchAttributesAndFallbacks(t *testing.T) {
	page := `<html><body>
		<div data-product-id="9">
			<a title="Full Product Name With Details" href="//www.aliexpress.com/item/9.html">Truncated…</a>
			<span class="price-current">US $7.99</span>
			<img data-src="//cdn.shop.test/9.jpg">
		</div>
		<div class="list-item">
			<h1>Unpriced Gadget</h1>
			<a href="/item/10.html"></a>
		</div>
	</body></html>`

	a := newSiteAdapter(t, "aliexpress", "gadget", page)

	records, err := a.Search(context.Background(), "gadget", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}

	first := records[0]
	if first.Title != "Full Product Name With Details" {
		t.Fatalf("title=%q, want title attribute over element text", first.Title)
	}
	if first.URL != "http://www.aliexpress.com/item/9.html" {
		t.Fatalf("url=%q, want resolved scheme-relative link", first.URL)
	}
	if !first.Price.Equal(decimalFromString(t, "7.99")) {
		t.Fatalf("price=%v, want 7.99", first.Price)
	}
	if first.ImageURL != "http://cdn.shop.test/9.jpg" {
		t.Fatalf("image=%q, want data-src fallback resolved", first.ImageURL)
	}

	second := records[1]
	if second.Title != "Unpriced Gadget" {
		t.Fatalf("title=%q", second.Title)
	}
	// Missing price text falls back to "0", not a nil price.
	if !second.HasPrice() || !second.Price.Equal(decimalFromString(t, "0")) {
		t.Fatalf("price=%v, want 0", second.Price)
	}
	if second.URL != "http://shop.test/item/10.html" {
		t.Fatalf("url=%q, want first-anchor fallback", second.URL)
	}
}
