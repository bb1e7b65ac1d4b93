package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const (
	captureKey        = "capture"
	selectorCacheSize = 128
)

// Extractor fetches a URL and returns the parsed document.
type Extractor interface {
	FetchPage(ctx context.Context, pageURL string) (*Page, error)
}

// Options configure an HTTPExtractor.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// HTTPExtractor fetches pages over HTTP through a shared colly collector
// and parses them into Pages. Safe for concurrent use; each request carries
// its own capture slot, so overlapping fetches do not mix results.
type HTTPExtractor struct {
	collector *colly.Collector
	selectors *selectorCache
}

type pageCapture struct {
	page *Page
	err  error
}

// NewHTTPExtractor builds an extractor configured from opts.
func NewHTTPExtractor(opts Options) (*HTTPExtractor, error) {
	selectors, err := newSelectorCache(selectorCacheSize)
	if err != nil {
		return nil, fmt.Errorf("selector cache: %w", err)
	}

	collector := colly.NewCollector(colly.AllowURLRevisit())
	if opts.UserAgent != "" {
		collector.UserAgent = opts.UserAgent
	}
	if opts.Timeout > 0 {
		collector.SetRequestTimeout(opts.Timeout)
	}
	collector.IgnoreRobotsTxt = !opts.RespectRobots

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	collector.WithTransport(transport)

	x := &HTTPExtractor{collector: collector, selectors: selectors}
	x.installHandlers()
	return x, nil
}

// FetchPage issues a synchronous GET for pageURL and returns the parsed
// document. Fetch failures come back classified; see Classify.
func (x *HTTPExtractor) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture := &pageCapture{}
	cctx := colly.NewContext()
	cctx.Put(captureKey, capture)

	err := x.collector.Request(http.MethodGet, pageURL, nil, cctx, nil)
	if capture.err != nil {
		return nil, capture.err
	}
	if err != nil {
		return nil, Classify(err, 0)
	}
	if capture.page == nil {
		return nil, ErrConnection{Err: errors.New("no response received")}
	}
	return capture.page, nil
}

func (x *HTTPExtractor) installHandlers() {
	x.collector.OnResponse(func(r *colly.Response) {
		capture, ok := r.Request.Ctx.GetAny(captureKey).(*pageCapture)
		if !ok {
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			capture.err = fmt.Errorf("parse html: %w", err)
			return
		}
		capture.page = newPage(doc.Selection, r.Request.URL, x.selectors)
	})

	x.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Request == nil {
			return
		}
		capture, ok := r.Request.Ctx.GetAny(captureKey).(*pageCapture)
		if !ok {
			return
		}
		capture.err = Classify(err, r.StatusCode)
	})
}
