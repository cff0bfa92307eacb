package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"listing-search/boundary"
	"listing-search/config"
	"listing-search/fixtures"
	"listing-search/httpapi"
	"listing-search/models"
	"listing-search/scraper"
	"listing-search/services"
	"listing-search/storage"
	"listing-search/utils"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	shutdownTimeout    = 10 * time.Second
)

func main() {
	cfg := config.Load()
	logger := utils.NewLoggerWithOptions(utils.LoggerOptions{
		Level: cfg.LogLevel,
		JSON:  cfg.LogFormat == "json",
	})

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	logger = logger.With("cmd", cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "summary":
		err = runSummary(ctx, cfg, logger, args)
	case "seed":
		err = runSeed(ctx, cfg, logger, args)
	default:
		err = fmt.Errorf("unknown command %q (want serve, summary or seed)", cmd)
	}
	if err != nil {
		logger.Error("%s failed: %v", cmd, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	logger.Info("=== Listing search starting ===")
	logger.Info("Config: source=%s | page size: %d | addr: %s", cfg.ListingSource, cfg.PageSize, cfg.HTTPAddr)

	source, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	store := openStore(ctx, cfg, logger)
	defer store.Close()

	engine := newEngine(cfg, logger)
	sessions := httpapi.NewSessionRegistry(engine, cfg.PageSize)
	go sweepSessions(ctx, sessions, logger)

	handler := httpapi.NewRouter(httpapi.Deps{
		Adapter:            boundary.NewAdapter(source, storage.NewLastSearchRepository(store, ""), logger),
		Engine:             engine,
		Insights:           services.NewInsightService(logger),
		Sessions:           sessions,
		Logger:             logger,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepSessions(ctx context.Context, sessions *httpapi.SessionRegistry, logger *utils.Logger) {
	ticker := time.NewTicker(sessionIdleTimeout / 6)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(sessionIdleTimeout); n > 0 {
				logger.Debug("Swept %d idle sessions (%d live)", n, sessions.Len())
			}
		}
	}
}

// runSummary fetches once, prints the insight report and optionally exports
// the matched listings to CSV.
func runSummary(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	location := fs.String("location", "", "Free-text location to search")
	sortKey := fs.String("sort", string(models.SortDefault), "Sort key: default, priceAsc, priceDesc, ratingDesc, newest")
	verified := fs.Bool("verified", false, "Only network-verified listings")
	csvPath := fs.String("csv", "", "Write matched listings to this CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	source, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	fetched := boundary.NewAdapter(source, nil, logger).FetchListings(ctx, models.Query{Location: *location})
	if err := fetched.Err(); err != nil {
		return err
	}

	filter := models.DefaultFilterState()
	filter.VerifiedOnly = *verified
	key, ok := models.ParseSortKey(*sortKey)
	if !ok {
		logger.Warn("Unknown sort key %q, using %s", *sortKey, key)
	}

	engine := newEngine(cfg, logger)
	result := engine.Search(fetched.Records, fetched.Shape, filter, key, models.ViewWindow{PageSize: cfg.PageSize}.ShowAll())
	logger.Info("Fetched %d records from %s: %d matched, %d dropped",
		len(fetched.Records), fetched.Source, result.TotalCount, result.Dropped)

	insights := services.NewInsightService(logger)
	insights.Print(os.Stdout, insights.Generate(result.Visible))

	if *csvPath == "" {
		return nil
	}
	w, err := storage.NewCSVFileWriter(*csvPath)
	if err != nil {
		return err
	}
	if err := w.WriteListings(result.Visible); err != nil {
		w.Close()
		return err
	}
	logger.Info("Listings saved to %s", *csvPath)
	return w.Close()
}

// runSeed writes normalized fixture listings into PostgreSQL, or into a CSV
// file when -csv is given.
func runSeed(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("count", cfg.FixtureCount, "Number of fixture records to generate")
	seed := fs.Uint64("seed", cfg.FixtureSeed, "Fixture generator seed")
	wipe := fs.Bool("clear", false, "Delete existing rows first (PostgreSQL only)")
	csvPath := fs.String("csv", "", "Write to this CSV file instead of PostgreSQL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		sink storage.ListingWriter
		dest string
	)
	if *csvPath != "" {
		w, err := storage.NewCSVFileWriter(*csvPath)
		if err != nil {
			return err
		}
		sink, dest = w, *csvPath
	} else {
		pg, err := storage.NewPostgresSource(ctx, cfg.DSN(), retryConfig(cfg, logger))
		if err != nil {
			return err
		}
		if *wipe {
			if err := pg.Clear(ctx); err != nil {
				pg.Close()
				return err
			}
		}
		sink, dest = pg, "PostgreSQL"
	}

	raw := fixtures.Generator{Seed: *seed}.Records(*count)
	listings, dropped := newEngine(cfg, logger).NormalizeAll(raw, models.ShapeLegacy)
	if err := sink.Write(ctx, listings); err != nil {
		sink.Close()
		return err
	}
	logger.Info("Seeded %d listings into %s (%d dropped)", len(listings), dest, dropped)
	return sink.Close()
}

func openSource(ctx context.Context, cfg *config.Config, logger *utils.Logger) (boundary.ListingSource, func(), error) {
	noop := func() {}

	switch cfg.ListingSource {
	case config.SourceFixture:
		logger.Info("Serving %d fixture records (seed %d)", cfg.FixtureCount, cfg.FixtureSeed)
		return fixtures.NewSource(cfg.FixtureSeed, cfg.FixtureCount), noop, nil

	case config.SourcePostgres:
		pg, err := storage.NewPostgresSource(ctx, cfg.DSN(), retryConfig(cfg, logger))
		if err != nil {
			logger.Error("Make sure PostgreSQL is running: docker compose up -d")
			return nil, noop, err
		}
		return pg, func() { pg.Close() }, nil

	case config.SourceHTTP:
		if cfg.RemoteListingsURL == "" {
			return nil, noop, errors.New("REMOTE_LISTINGS_URL is required for the http source")
		}
		shape := models.ShapeStandard
		if cfg.RemoteShape == string(models.ShapeLegacy) {
			shape = models.ShapeLegacy
		}
		return storage.NewHTTPSource(cfg.RemoteListingsURL, cfg.RemoteAPIKey, shape, cfg.MaxRetries, logger), noop, nil

	case config.SourceBrowser:
		return scraper.New(scraper.Config{
			StartURL:        cfg.BrowserStartURL,
			ChromeBin:       cfg.ChromeBin,
			MaxPages:        cfg.BrowserMaxPages,
			ListingsPerPage: cfg.BrowserListingsPerPage,
			MaxConcurrency:  cfg.MaxConcurrency,
			RateLimitMs:     cfg.RateLimitMs,
			MaxRetries:      cfg.MaxRetries,
		}, logger), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown LISTING_SOURCE %q", cfg.ListingSource)
}

// openStore returns Redis when configured and reachable, otherwise an
// in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) storage.KeyValueStore {
	if cfg.RedisAddr == "" {
		logger.Info("Last searches kept in memory")
		return storage.NewMemoryStore()
	}
	rs, err := storage.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LastSearchTTL)
	if err != nil {
		logger.Warn("Redis unavailable, keeping last searches in memory: %v", err)
		return storage.NewMemoryStore()
	}
	logger.Info("Last searches kept in Redis at %s", cfg.RedisAddr)
	return rs
}

func newEngine(cfg *config.Config, logger *utils.Logger) *services.Engine {
	normalizer := services.NewNormalizer(services.NormalizerConfig{
		SynthesizeCoordinates: cfg.SynthesizeCoordinates,
		Reference:             models.Coordinates{Lat: cfg.ReferenceLat, Lng: cfg.ReferenceLng},
	}, logger)
	return services.NewEngine(normalizer, logger)
}

func retryConfig(cfg *config.Config, logger *utils.Logger) utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}
}
