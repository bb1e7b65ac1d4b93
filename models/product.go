// Package models defines data structures shared across the scraper.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRecord is one normalized product listing. Records are built by a
// site adapter and validated before they enter any result set; a candidate
// that fails validation is dropped at construction, never stored half-valid.
type ProductRecord struct {
	Title        string           `csv:"title" json:"title"`
	Price        *decimal.Decimal `csv:"price" json:"price"`
	Currency     string           `csv:"currency" json:"currency"`
	URL          string           `csv:"url" json:"url"`
	ImageURL     string           `csv:"image_url" json:"image_url"`
	Availability string           `csv:"availability" json:"availability"`
	Site         string           `csv:"site" json:"site"`
	ScrapedAt    time.Time        `csv:"scraped_at" json:"scraped_at"`
}

// HasPrice reports whether a parseable price was found for the record.
// A nil price is legal; it sorts after every priced record.
func (p *ProductRecord) HasPrice() bool {
	return p != nil && p.Price != nil
}

// SiteResult is the outcome of one adapter operation within a single
// orchestrator request: the records it produced, or a captured failure
// note. Failed sites keep an empty Products slice.
type SiteResult struct {
	Site      string          `json:"site"`
	Products  []ProductRecord `json:"products"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

// Failed reports whether the adapter operation ended in an error.
func (r SiteResult) Failed() bool {
	return r.Error != ""
}

// AggregateReport summarizes one combined, price-sorted result set.
// Price statistics cover records with a positive price only; they are
// nil when no such record exists.
type AggregateReport struct {
	Query        string           `json:"query"`
	TotalResults int              `json:"total_results"`
	LowestPrice  *decimal.Decimal `json:"lowest_price"`
	HighestPrice *decimal.Decimal `json:"highest_price"`
	AveragePrice *decimal.Decimal `json:"average_price"`
	BestDeal     *ProductRecord   `json:"best_deal"`
	Products     []ProductRecord  `json:"products"`
}
