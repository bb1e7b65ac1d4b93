// Package api exposes the orchestrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"pricescout/models"
	"pricescout/scraper"
)

const (
	defaultSearchResults = 10
	defaultTopDeals      = 5
)

// Service is the orchestrator surface the handlers need.
type Service interface {
	SearchAllCombined(ctx context.Context, query string, maxPerSite int) []models.ProductRecord
	SearchSubsetCombined(ctx context.Context, query string, sites []string, maxPerSite int) ([]models.ProductRecord, error)
	BestDeals(ctx context.Context, query string, topN int) []models.ProductRecord
	ComparePrices(ctx context.Context, query string) models.AggregateReport
	ScrapeURL(ctx context.Context, pageURL, site string) (*models.ProductRecord, error)
	Sites() []string
}

type Handlers struct {
	service Service
	logger  *slog.Logger
}

func NewHandlers(service Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

// SearchResponse carries a combined, price-sorted search result.
type SearchResponse struct {
	Query        string                 `json:"query"`
	TotalResults int                    `json:"total_results"`
	Products     []models.ProductRecord `json:"products"`
}

// DealsResponse carries the cheapest positively priced results.
type DealsResponse struct {
	Query string                 `json:"query"`
	Deals []models.ProductRecord `json:"deals"`
}

// SitesResponse lists the sites the service can search.
type SitesResponse struct {
	Sites []string `json:"sites"`
}

// ScrapeRequest names one product page on one site.
type ScrapeRequest struct {
	URL  string `json:"url"`
	Site string `json:"site"`
}

// Home serves a short JSON description of the API.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"name":    "pricescout API",
		"version": "1.0",
		"endpoints": map[string]any{
			"GET /api/search": map[string]string{
				"description": "Search sites for products",
				"parameters":  "q (required), max_results (default 10), sites (comma-separated, default all)",
				"example":     "/api/search?q=laptop&max_results=5",
			},
			"GET /api/best-deals": map[string]string{
				"description": "Get the cheapest deals for a query",
				"parameters":  "q (required), top_n (default 5)",
				"example":     "/api/best-deals?q=headphones&top_n=3",
			},
			"GET /api/compare": map[string]string{
				"description": "Compare prices across sites",
				"parameters":  "q (required)",
				"example":     "/api/compare?q=monitor",
			},
			"GET /api/sites": map[string]string{
				"description": "List available sites",
				"example":     "/api/sites",
			},
			"POST /api/scrape": map[string]string{
				"description": "Scrape one product URL",
				"body":        `{"url": "...", "site": "..."}`,
				"example":     "POST with JSON body",
			},
		},
	})
}

// Health reports liveness and the registered sites.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"sites":  h.service.Sites(),
	})
}

// Search runs a combined search across all sites, or the subset named by
// the sites parameter.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.respondError(w, http.StatusBadRequest, `Query parameter "q" is required`)
		return
	}
	maxResults, err := queryInt(r, "max_results", defaultSearchResults)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var products []models.ProductRecord
	if sitesParam := r.URL.Query().Get("sites"); sitesParam != "" {
		products, err = h.service.SearchSubsetCombined(r.Context(), query, splitSites(sitesParam), maxResults)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		products = h.service.SearchAllCombined(r.Context(), query, maxResults)
	}

	h.respondJSON(w, http.StatusOK, SearchResponse{
		Query:        query,
		TotalResults: len(products),
		Products:     products,
	})
}

// BestDeals returns the top_n cheapest priced results for a query.
func (h *Handlers) BestDeals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.respondError(w, http.StatusBadRequest, `Query parameter "q" is required`)
		return
	}
	topN, err := queryInt(r, "top_n", defaultTopDeals)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, DealsResponse{
		Query: query,
		Deals: h.service.BestDeals(r.Context(), query, topN),
	})
}

// Compare returns the aggregate price report for a query.
func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.respondError(w, http.StatusBadRequest, `Query parameter "q" is required`)
		return
	}

	h.respondJSON(w, http.StatusOK, h.service.ComparePrices(r.Context(), query))
}

// Sites lists the available sites.
func (h *Handlers) Sites(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, SitesResponse{Sites: h.service.Sites()})
}

// Scrape fetches a single product page through the adapter for the named
// site.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.Site == "" {
		h.respondError(w, http.StatusBadRequest, "URL and site are required")
		return
	}

	product, err := h.service.ScrapeURL(r.Context(), req.URL, req.Site)
	if err != nil {
		if errors.Is(err, scraper.ErrUnknownSite) {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("Site %s not available", req.Site))
			return
		}
		h.logger.Error("scrape failed", slog.String("url", req.URL), slog.String("site", req.Site), slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if product == nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to scrape product")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an integer", key)
	}
	return n, nil
}

func splitSites(raw string) []string {
	parts := strings.Split(raw, ",")
	sites := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sites = append(sites, trimmed)
		}
	}
	return sites
}
