package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	lru "github.com/hashicorp/golang-lru/v2"
)

// selectorCache memoizes compiled CSS selectors. Site rules reuse a small
// fixed set of selectors for every item on every page, so each selector is
// compiled once instead of once per lookup.
type selectorCache struct {
	entries *lru.Cache[string, cascadia.Selector]
}

func newSelectorCache(size int) (*selectorCache, error) {
	entries, err := lru.New[string, cascadia.Selector](size)
	if err != nil {
		return nil, err
	}
	return &selectorCache{entries: entries}, nil
}

func (sc *selectorCache) compile(selector string) (cascadia.Selector, error) {
	if sel, ok := sc.entries.Get(selector); ok {
		return sel, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, err
	}
	sc.entries.Add(selector, sel)
	return sel, nil
}

// Page wraps a fetched document, or a single element of one, and offers
// fallback-aware lookups. Text and Attr accept several selectors separated
// by commas and try them left to right, so rules list the preferred
// selector first and fallbacks after it. Select and Has treat the list as
// one CSS selector group instead.
type Page struct {
	sel       *goquery.Selection
	base      *url.URL
	selectors *selectorCache
}

func newPage(sel *goquery.Selection, base *url.URL, selectors *selectorCache) *Page {
	return &Page{sel: sel, base: base, selectors: selectors}
}

// URL returns the address the document was fetched from.
func (p *Page) URL() string {
	if p.base == nil {
		return ""
	}
	return p.base.String()
}

// Text returns the trimmed text of the first selector that matches an
// element, or "" when none match.
func (p *Page) Text(selectorList string) string {
	for _, selector := range splitSelectors(selectorList) {
		matcher, err := p.selectors.compile(selector)
		if err != nil {
			slog.Error("bad selector", slog.String("selector", selector), slog.Any("error", err))
			continue
		}
		found := p.sel.FindMatcher(matcher).First()
		if found.Length() > 0 {
			return strings.TrimSpace(found.Text())
		}
	}
	return ""
}

// Attr returns the named attribute of the first matched element carrying
// it. A selector whose match lacks the attribute falls through to the next
// selector, which lets image rules chase src and data-src variants.
func (p *Page) Attr(selectorList, attr string) string {
	for _, selector := range splitSelectors(selectorList) {
		matcher, err := p.selectors.compile(selector)
		if err != nil {
			slog.Error("bad selector", slog.String("selector", selector), slog.Any("error", err))
			continue
		}
		found := p.sel.FindMatcher(matcher).First()
		if found.Length() == 0 {
			continue
		}
		if value, ok := found.Attr(attr); ok {
			return value
		}
	}
	return ""
}

// Has reports whether the selector group matches anything under this page.
func (p *Page) Has(selectorGroup string) bool {
	matcher, err := p.selectors.compile(selectorGroup)
	if err != nil {
		slog.Error("bad selector", slog.String("selector", selectorGroup), slog.Any("error", err))
		return false
	}
	return p.sel.FindMatcher(matcher).Length() > 0
}

// Select returns one sub-page per element matched by the selector group,
// in document order.
func (p *Page) Select(selectorGroup string) []*Page {
	matcher, err := p.selectors.compile(selectorGroup)
	if err != nil {
		slog.Error("bad selector", slog.String("selector", selectorGroup), slog.Any("error", err))
		return nil
	}
	var items []*Page
	p.sel.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		items = append(items, newPage(s, p.base, p.selectors))
	})
	return items
}

// AbsoluteURL resolves href against the page address. Scheme-relative and
// path-relative links both resolve; an empty or unparseable href yields "".
func (p *Page) AbsoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || p.base == nil {
		return ""
	}
	resolved, err := p.base.Parse(href)
	if err != nil {
		return ""
	}
	return resolved.String()
}

func splitSelectors(list string) []string {
	parts := strings.Split(list, ",")
	selectors := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			selectors = append(selectors, trimmed)
		}
	}
	return selectors
}
