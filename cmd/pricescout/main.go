package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pricescout/aggregate"
	"pricescout/config"
	"pricescout/export"
	"pricescout/models"
	"pricescout/parser"
	"pricescout/scraper"
)

func main() {
	maxResults := flag.Int("max-results", config.EnvInt("PRICESCOUT_MAX_RESULTS", 10), "Maximum results per site")
	sitesFlag := flag.String("sites", "", "Comma-separated sites to search (default all)")
	bestDeals := flag.Bool("best-deals", false, "Show only the cheapest deals")
	topN := flag.Int("top", 5, "Number of deals with -best-deals")
	compare := flag.Bool("compare", false, "Show price comparison analysis")
	outputFile := flag.String("output", "", "Output file path")
	outputFormat := flag.String("format", "json", "Output format: csv, json, or dual")
	configPath := flag.String("config", config.EnvString("PRICESCOUT_CONFIG", ""), "Configuration file (YAML)")
	metricsAddr := flag.String("metrics-addr", config.EnvString("PRICESCOUT_METRICS_ADDR", ""), "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: pricescout [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	setLogLoggerLevel(level.Level())

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Scraper.MetricsAddr = *metricsAddr
	}

	orch, err := scraper.NewFromConfig(cfg)
	if err != nil {
		slog.Error("initialising scrapers", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("scrapers ready", slog.Any("sites", orch.Sites()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.Scraper.MetricsAddr != "" && orch.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.Scraper.MetricsAddr,
			Handler: promhttp.HandlerFor(orch.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.Scraper.MetricsAddr))
	}

	records, err := run(ctx, orch, query, *sitesFlag, *maxResults, *bestDeals, *compare, *topN)
	if err != nil {
		slog.Error("search failed", slog.Any("error", err))
		os.Exit(1)
	}

	if *outputFile != "" {
		if len(records) == 0 {
			slog.Info("no results to export")
		} else if err := saveRecords(records, *outputFormat, *outputFile); err != nil {
			slog.Error("saving results", slog.Any("error", err))
			os.Exit(1)
		} else {
			fmt.Printf("\nResults saved to %s\n", *outputFile)
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// run dispatches the selected mode and returns the records to export.
func run(ctx context.Context, orch *scraper.Orchestrator, query, sitesFlag string, maxResults int, bestDeals, compare bool, topN int) ([]models.ProductRecord, error) {
	switch {
	case bestDeals:
		slog.Info("searching for best deals", slog.String("query", query))
		deals := orch.BestDeals(ctx, query, topN)
		printDeals(deals, topN)
		return deals, nil

	case compare:
		slog.Info("comparing prices", slog.String("query", query))
		report := orch.ComparePrices(ctx, query)
		printReport(report)
		return report.Products, nil

	case sitesFlag != "":
		sites := splitList(sitesFlag)
		slog.Info("searching selected sites", slog.String("query", query), slog.Any("sites", sites))
		results, err := orch.SearchSubset(ctx, query, sites, maxResults)
		if err != nil {
			return nil, err
		}
		printSiteResults(results)
		return aggregate.Combine(results), nil

	default:
		slog.Info("searching all sites", slog.String("query", query))
		combined := orch.SearchAllCombined(ctx, query, maxResults)
		printCombined(combined)
		return combined, nil
	}
}

func printDeals(deals []models.ProductRecord, topN int) {
	fmt.Printf("\n=== Top %d Best Deals ===\n\n", topN)
	for i, product := range deals {
		fmt.Printf("%d. %s\n", i+1, product.Title)
		fmt.Printf("   Price: %s\n", parser.FormatPrice(*product.Price, product.Currency))
		fmt.Printf("   Site: %s\n", product.Site)
		fmt.Printf("   URL: %s\n\n", product.URL)
	}
}

func printReport(report models.AggregateReport) {
	fmt.Printf("\n=== Price Comparison Analysis ===\n\n")
	fmt.Printf("Total Results: %d\n", report.TotalResults)
	if report.LowestPrice != nil {
		fmt.Printf("Lowest Price: $%s\n", report.LowestPrice.StringFixed(2))
		fmt.Printf("Highest Price: $%s\n", report.HighestPrice.StringFixed(2))
		fmt.Printf("Average Price: $%s\n", report.AveragePrice.StringFixed(2))
	}
	if best := report.BestDeal; best != nil && best.HasPrice() {
		fmt.Printf("\nBest Deal:\n")
		fmt.Printf("  %s\n", best.Title)
		fmt.Printf("  %s on %s\n", parser.FormatPrice(*best.Price, best.Currency), best.Site)
		fmt.Printf("  %s\n", best.URL)
	}
}

func printSiteResults(results map[string]models.SiteResult) {
	for _, site := range sortedKeys(results) {
		result := results[site]
		if result.Failed() {
			fmt.Printf("\n=== %s (failed: %s) ===\n", strings.ToUpper(site), result.Error)
			continue
		}
		fmt.Printf("\n=== %s (%d results) ===\n\n", strings.ToUpper(site), len(result.Products))
		for i, product := range result.Products {
			printListing(i, product, false)
		}
	}
}

func printCombined(combined []models.ProductRecord) {
	fmt.Printf("\n=== Combined Results (%d products, sorted by price) ===\n\n", len(combined))
	for i, product := range combined {
		printListing(i, product, true)
	}
}

func printListing(i int, product models.ProductRecord, withSite bool) {
	fmt.Printf("%d. %s\n", i+1, product.Title)
	if product.HasPrice() && !product.Price.IsZero() {
		fmt.Printf("   Price: %s\n", parser.FormatPrice(*product.Price, product.Currency))
	}
	if withSite {
		fmt.Printf("   Site: %s\n", product.Site)
	}
	fmt.Printf("   URL: %s\n\n", truncate(product.URL, 80))
}

func saveRecords(records []models.ProductRecord, format, filename string) error {
	writer, err := createWriter(format, filename)
	if err != nil {
		return err
	}
	if err := writer.Write(records); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return writer.Validate()
}

func createWriter(format, filename string) (export.Writer, error) {
	switch format {
	case "json":
		return export.NewJSONWriter(filename)
	case "csv":
		return export.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return export.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sortedKeys(results map[string]models.SiteResult) []string {
	keys := make([]string, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
