package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"crs-prediction-api/config"
	"crs-prediction-api/ingest"
	"crs-prediction-api/logger"
	"crs-prediction-api/models"
	"crs-prediction-api/services"
	"crs-prediction-api/store"
)

const fetchTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "crs-ingester",
		Usage: "pull Express Entry rounds into the draw store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML config file", EnvVars: []string{config.ConfigPathEnvVar}},
		},
		Before: func(c *cli.Context) error {
			if p := c.String("config"); p != "" {
				return os.Setenv(config.ConfigPathEnvVar, p)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "fetch the IRCC rounds once and store new draws",
				Flags:  ingestFlags(),
				Action: fetchAction,
			},
			{
				Name:  "run",
				Usage: "fetch on an interval, listen for MQTT announcements and serve metrics",
				Flags: append(ingestFlags(),
					&cli.DurationFlag{Name: "interval", Usage: "time between IRCC fetches (overrides ingest.interval)"},
				),
				Action: runAction,
			},
			{
				Name:  "seed",
				Usage: "load draws, pool distribution and targets into the sql store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "data directory holding draws.json and immigration_targets.json (default: built-in pool and targets only)"},
				},
				Action: seedAction,
			},
			{
				Name:   "verify",
				Usage:  "check that the store holds usable draws, pool and targets",
				Action: verifyAction,
			},
		},
	}
}

func ingestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "url", Usage: "rounds JSON URL (overrides ingest.source_url)"},
		&cli.StringFlag{Name: "sink", Usage: "postgres or file (overrides ingest.sink)"},
		&cli.BoolFlag{Name: "publish", Value: true, Usage: "announce new draws on redis"},
	}
}

func setup(c *cli.Context) (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if u := c.String("url"); u != "" {
		cfg.Ingest.SourceURL = u
	}
	if s := c.String("sink"); s != "" {
		cfg.Ingest.Sink = s
	}
	if c.Duration("interval") > 0 {
		cfg.Ingest.Interval = c.Duration("interval")
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openSink returns the configured draw sink and its close function.
func openSink(ctx context.Context, cfg *config.Config) (ingest.Sink, func(), error) {
	switch cfg.Ingest.Sink {
	case config.DriverFile:
		return store.NewFileStore(cfg.Database.DataDir), func() {}, nil
	case config.DriverPostgres:
		sink, err := ingest.NewPGXSink(ctx, cfg.Database.GetURL())
		if err != nil {
			return nil, nil, err
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			sink.Close()
			return nil, nil, err
		}
		return sink, sink.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Ingest.Sink)
	}
}

func newIngester(c *cli.Context, cfg *config.Config, log *logger.Logger) (*ingest.Ingester, func(), error) {
	sink, closeSink, err := openSink(c.Context, cfg)
	if err != nil {
		return nil, nil, err
	}

	var pub ingest.Publisher
	cleanup := closeSink
	if c.Bool("publish") {
		cache, err := services.NewCacheService(cfg.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, draws will not be announced", "error", err)
		} else {
			pub = cache
			cleanup = func() {
				cache.Close()
				closeSink()
			}
		}
	}

	fetcher := ingest.NewFetcher(cfg.Ingest.SourceURL, fetchTimeout)
	return ingest.NewIngester(fetcher, sink, pub, services.ChannelDraws, log), cleanup, nil
}

func fetchAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	ing, cleanup, err := newIngester(c, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := ing.RunOnce(c.Context)
	if err != nil {
		return err
	}
	log.Info("fetch complete", "sink", cfg.Ingest.Sink, "received", res.Received, "stored", res.Stored, "rejected", res.Rejected)
	return nil
}

func runAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	ing, cleanup, err := newIngester(c, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	g, ctx := errgroup.WithContext(c.Context)

	g.Go(func() error {
		return serveHTTP(ctx, cfg.Metrics.Addr, log)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Ingest.Interval)
		defer ticker.Stop()
		for {
			if _, err := ing.RunOnce(ctx); err != nil {
				log.Error("fetch failed", "url", cfg.Ingest.SourceURL, "error", err)
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}
	})

	if cfg.Ingest.MQTTURL != "" {
		g.Go(func() error {
			client, err := ingest.SubscribeAnnouncements(ctx, cfg.Ingest.MQTTURL, cfg.Ingest.MQTTTopic, log, ing.HandleAnnouncement)
			if err != nil {
				return err
			}
			<-ctx.Done()
			client.Disconnect(250)
			return nil
		})
	}

	log.Info("ingester running",
		"url", cfg.Ingest.SourceURL,
		"interval", cfg.Ingest.Interval,
		"sink", cfg.Ingest.Sink,
		"mqtt", cfg.Ingest.MQTTURL != "")

	err = g.Wait()
	log.Info("ingester shutting down")
	return err
}

func seedAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	loader, closeStore, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()
	db, ok := loader.(*store.GormStore)
	if !ok {
		return cli.Exit(fmt.Sprintf("seed: driver %q is not a sql database", cfg.Database.Driver), 1)
	}

	pools := store.DefaultPoolStats()
	targets := store.DefaultTargets()
	var draws []models.Draw
	if dir := c.String("from"); dir != "" {
		src := store.NewFileStore(dir)
		data, err := src.LoadOfficialData(c.Context)
		if err != nil {
			return err
		}
		if pools, err = src.PoolHistory(c.Context); err != nil {
			return err
		}
		targets = data.Targets

		// Rows are keyed by round number, so unnumbered site draws wait
		// for the next fetch to supply one.
		var rejected []error
		draws, rejected = ingest.Partition(data.Draws)
		if len(rejected) > 0 {
			log.Warn("draws not imported", "count", len(rejected), "first", rejected[0])
		}
	}

	added, err := db.SaveDraws(c.Context, draws)
	if err != nil {
		return err
	}
	years := make([]int, 0, len(pools))
	for year, pool := range pools {
		pool.Year = year
		if err := db.SavePool(c.Context, pool); err != nil {
			return fmt.Errorf("seed pool %d: %w", year, err)
		}
		years = append(years, year)
	}
	sort.Ints(years)
	if err := db.SaveTargets(c.Context, targets); err != nil {
		return fmt.Errorf("seed targets: %w", err)
	}

	log.Info("store seeded",
		"driver", cfg.Database.Driver,
		"draws", added,
		"pool_years", years,
		"targets", len(targets))
	return nil
}

func verifyAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	loader, closeStore, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	issues := ingest.Verify(c.Context, loader, time.Now().UTC())
	fatal := 0
	for _, issue := range issues {
		if issue.Fatal {
			fatal++
			log.Error("integrity check failed", "issue", issue.Message)
			continue
		}
		log.Warn("integrity warning", "issue", issue.Message)
	}
	if fatal > 0 {
		return cli.Exit(fmt.Sprintf("verify: %d fatal issue(s)", fatal), 1)
	}
	log.Info("store verified", "driver", cfg.Database.Driver, "warnings", len(issues))
	return nil
}

func serveHTTP(ctx context.Context, addr string, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
