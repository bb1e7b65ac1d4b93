package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"

	"pricescout/extract"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func testAdapterConfig() AdapterConfig {
	return AdapterConfig{
		SearchURL: "http://shop.test/search?q={query}",
		Selectors: map[string]string{
			"title":        ".product-title",
			"price":        ".product-price",
			"image":        ".product-image img",
			"availability": ".availability",
		},
		RateDelay:  0,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		BackoffMax: 5 * time.Millisecond,
	}
}

func newTestAdapter(t *testing.T, transport http.RoundTripper, cfg AdapterConfig) *EbayAdapter {
	t.Helper()
	extractor, err := extract.NewHTTPExtractor(extract.Options{
		UserAgent: "pricescout-test",
		Timeout:   5 * time.Second,
		Transport: transport,
	})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return NewEbayAdapter(extractor, cfg)
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestFetchPageRetriesUntilSuccess(t *testing.T) {
	var calls int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/item", func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		}
		resp := httpmock.NewStringResponse(200, `<html><body><p class="x">ok</p></body></html>`)
		resp.Header.Set("Content-Type", "text/html")
		resp.Request = req
		return resp, nil
	})

	a := newTestAdapter(t, transport, testAdapterConfig())

	page, err := a.fetchPage(context.Background(), "http://shop.test/item")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page == nil {
		t.Fatalf("expected page after retries")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("attempts=%d, want 3", got)
	}
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	var calls int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/item", func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	})

	cfg := testAdapterConfig()
	cfg.MaxRetries = 2
	a := newTestAdapter(t, transport, cfg)

	_, err := a.fetchPage(context.Background(), "http://shop.test/item")
	var conn extract.ErrConnection
	if !errors.As(err, &conn) {
		t.Fatalf("err=%v, want connection classification", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("attempts=%d, want 2", got)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	b := siteBase{backoff: 200 * time.Millisecond, backoffMax: 500 * time.Millisecond}

	if delay := b.backoffDelay(4); delay > 500*time.Millisecond {
		t.Fatalf("delay %v exceeds max 500ms", delay)
	}
	if delay := b.backoffDelay(1); delay != 200*time.Millisecond {
		t.Fatalf("first delay %v, want 200ms", delay)
	}
	if delay := b.backoffDelay(2); delay != 400*time.Millisecond {
		t.Fatalf("second delay %v, want 400ms", delay)
	}
}

func TestSearchURLEscapesQuery(t *testing.T) {
	a := newTestAdapter(t, httpmock.NewMockTransport(), testAdapterConfig())

	got := a.searchURL("wireless mouse & pad")
	want := "http://shop.test/search?q=wireless+mouse+%26+pad"
	if got != want {
		t.Fatalf("searchURL=%q, want %q", got, want)
	}
}

func TestScrapeProductInvalidURL(t *testing.T) {
	a := newTestAdapter(t, httpmock.NewMockTransport(), testAdapterConfig())

	record, err := a.ScrapeProduct(context.Background(), "not a url")
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("err=%v, want ErrInvalidURL", err)
	}
	if record != nil {
		t.Fatalf("record=%v, want nil", record)
	}
}

func TestScrapeProductExtractionFailure(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/item",
		htmlResponder(`<html><body><div class="unrelated">nothing here</div></body></html>`))

	a := newTestAdapter(t, transport, testAdapterConfig())

	record, err := a.ScrapeProduct(context.Background(), "http://shop.test/item")
	if err != nil {
		t.Fatalf("err=%v, want nil for extraction failure", err)
	}
	if record != nil {
		t.Fatalf("record=%v, want nil", record)
	}
}

func TestScrapeProductSuccess(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/item", htmlResponder(`
		<html><body>
			<h1 class="product-title">  Wireless   Mouse </h1>
			<span class="product-price">$19.99</span>
			<div class="product-image"><img src="/img/mouse.jpg"></div>
		</body></html>`))

	a := newTestAdapter(t, transport, testAdapterConfig())

	record, err := a.ScrapeProduct(context.Background(), "http://shop.test/item")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if record == nil {
		t.Fatalf("expected record")
	}
	if record.Title != "Wireless Mouse" {
		t.Fatalf("title=%q, want %q", record.Title, "Wireless Mouse")
	}
	if !record.HasPrice() || !record.Price.Equal(decimalFromString(t, "19.99")) {
		t.Fatalf("price=%v, want 19.99", record.Price)
	}
	if record.Currency != "USD" {
		t.Fatalf("currency=%q, want USD", record.Currency)
	}
	if record.ImageURL != "http://shop.test/img/mouse.jpg" {
		t.Fatalf("image=%q, want absolutized path", record.ImageURL)
	}
	if record.Availability != "Available" {
		t.Fatalf("availability=%q, want fallback %q", record.Availability, "Available")
	}
	if record.Site != "ebay" {
		t.Fatalf("site=%q, want ebay", record.Site)
	}
	if record.ScrapedAt.IsZero() {
		t.Fatalf("scraped_at not set")
	}
}
