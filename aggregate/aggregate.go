// Package aggregate turns per-site scrape results into combined,
// price-ordered views and summary statistics.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"pricescout/models"
)

// Combine flattens per-site results into one list sorted by price,
// cheapest first. Records without a price sort after all priced ones;
// ties keep the flattened order (sites in sorted key order, records in
// site order), so the result is deterministic for a given input.
func Combine(results map[string]models.SiteResult) []models.ProductRecord {
	sites := make([]string, 0, len(results))
	for site := range results {
		sites = append(sites, site)
	}
	sort.Strings(sites)

	combined := []models.ProductRecord{}
	for _, site := range sites {
		combined = append(combined, results[site].Products...)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		pi, pj := combined[i].Price, combined[j].Price
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return pi.LessThan(*pj)
		}
	})
	return combined
}

// BestDeals returns the first topN records carrying a strictly positive
// price. combined must already be price-sorted, as Combine leaves it.
func BestDeals(combined []models.ProductRecord, topN int) []models.ProductRecord {
	deals := []models.ProductRecord{}
	if topN <= 0 {
		return deals
	}
	for _, rec := range combined {
		if rec.Price == nil || !rec.Price.IsPositive() {
			continue
		}
		deals = append(deals, rec)
		if len(deals) == topN {
			break
		}
	}
	return deals
}

// Compare builds the price statistics report for a combined result list.
// Statistics cover only strictly positive prices; the best deal is the
// first combined record, priced or not. Empty input yields a zeroed
// report, never an error.
func Compare(query string, combined []models.ProductRecord) models.AggregateReport {
	report := models.AggregateReport{
		Query:        query,
		TotalResults: len(combined),
		Products:     combined,
	}
	if len(combined) == 0 {
		report.Products = []models.ProductRecord{}
		return report
	}

	var priced []decimal.Decimal
	for _, rec := range combined {
		if rec.Price != nil && rec.Price.IsPositive() {
			priced = append(priced, *rec.Price)
		}
	}
	if len(priced) > 0 {
		lowest := decimal.Min(priced[0], priced[1:]...)
		highest := decimal.Max(priced[0], priced[1:]...)
		average := decimal.Avg(priced[0], priced[1:]...)
		report.LowestPrice = &lowest
		report.HighestPrice = &highest
		report.AveragePrice = &average
	}

	best := combined[0]
	report.BestDeal = &best
	return report
}
