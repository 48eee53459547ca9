package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daszybak/omniverse_markets/internal/cache"
	"github.com/daszybak/omniverse_markets/internal/connector"
	"github.com/daszybak/omniverse_markets/internal/httpapi"
	"github.com/daszybak/omniverse_markets/internal/ingest"
	"github.com/daszybak/omniverse_markets/internal/kalshi"
	"github.com/daszybak/omniverse_markets/internal/kalshi/api"
	"github.com/daszybak/omniverse_markets/internal/metrics"
	"github.com/daszybak/omniverse_markets/internal/platform"
	"github.com/daszybak/omniverse_markets/internal/polymarket"
	"github.com/daszybak/omniverse_markets/internal/publish"
	"github.com/daszybak/omniverse_markets/internal/sample"
	"github.com/daszybak/omniverse_markets/internal/schema"
	"github.com/daszybak/omniverse_markets/internal/store"
	"github.com/daszybak/omniverse_markets/internal/stream"
	"github.com/daszybak/omniverse_markets/pkg/httpclient"
	"github.com/daszybak/omniverse_markets/pkg/retry"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := readConfig(configPath)
	if err != nil {
		return err
	}

	level, _ := parseLevel(cfg.LogLevel)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	data, fromFile, err := sample.Load(cfg.SampleDataPath)
	if err != nil {
		return err
	}
	log.Info("Loaded sample data", "path", cfg.SampleDataPath, "from_file", fromFile, "markets", len(data.Markets))

	var marketCache connector.MarketCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		marketCache = cache.New(rdb, cfg.Redis.MarketTTL.Duration())
		log.Info("Connected to redis", "addr", cfg.Redis.Addr)
	}

	connectors := buildConnectors(cfg, data, marketCache, m, log)

	var syncOpts []ingest.Option
	syncOpts = append(syncOpts, ingest.WithMetrics(m))

	poolCfg := store.PoolConfig{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password.Value(),
		Database: cfg.Database.Database,
		PoolSize: cfg.Database.PoolSize,
		SSLMode:  cfg.Database.SSLMode,
	}
	if poolCfg.Enabled() {
		pool, err := store.NewPool(ctx, poolCfg)
		if err != nil {
			return err
		}
		st := store.New(pool)
		defer st.Close()
		if err := st.EnsureSchema(ctx); err != nil {
			return err
		}
		syncOpts = append(syncOpts, ingest.WithStore(st))
		log.Info("Connected to database")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := publish.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer pub.Close()
		syncOpts = append(syncOpts, ingest.WithPublisher(pub))
		log.Info("Publishing syncs", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	hub := stream.NewHub(log, m)
	syncOpts = append(syncOpts, ingest.WithBroadcaster(hub))

	syncer := ingest.New(connectors, log, syncOpts...)
	go syncer.Run(ctx, cfg.SyncInterval.Duration())

	apiServer := httpapi.New(httpapi.Config{
		Connectors: connectors,
		Syncer:     syncer,
		Stream:     hub,
		Metrics:    m.Handler(),
		Observer:   m,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

// buildConnectors returns Kalshi first so it wins ID lookups. Each provider
// runs live only when its credentials are configured.
func buildConnectors(cfg *config, data *sample.Dataset, mc connector.MarketCache, m *metrics.Metrics, log *slog.Logger) []*connector.Connector {
	opts := []connector.Option{connector.WithMetrics(m)}
	if mc != nil {
		opts = append(opts, connector.WithCache(mc))
	}

	policy := func(p schema.Provider) httpclient.Option {
		return httpclient.WithRetry(retry.Policy{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay.Duration(),
			OnRetry: func(int, time.Duration, error) {
				m.Retry(string(p))
			},
			Logger: log.With("provider", p),
		})
	}
	timeout := httpclient.WithTimeout(cfg.Retry.Timeout.Duration())

	var kalshiPlatform platform.Platform
	kalshiMode := platform.ModeMock
	if cfg.kalshiLive() {
		k := cfg.Platforms.Kalshi
		client := api.New(k.APIURL, k.APIKey.Value(), k.UserID, policy(schema.Kalshi), timeout)
		kalshiPlatform = kalshi.New(client, time.Now, log)
		kalshiMode = platform.ModeLive
	} else {
		kalshiPlatform = sample.New(schema.Kalshi, data, time.Now, log)
	}

	var polyPlatform platform.Platform
	polyMode := platform.ModeMock
	if cfg.polymarketLive() {
		p := cfg.Platforms.PolyMarket
		polyPlatform = polymarket.New(polymarket.Config{
			GammaURL: p.GammaURL,
			ClobURL:  p.ClobURL,
			DataURL:  p.DataURL,
			APIKey:   p.APIKey.Value(),
		}, time.Now, log, policy(schema.Polymarket), timeout)
		polyMode = platform.ModeLive
	} else {
		polyPlatform = sample.New(schema.Polymarket, data, time.Now, log)
	}

	log.Info("Configured providers", "kalshi", kalshiMode, "polymarket", polyMode)
	return []*connector.Connector{
		connector.New(kalshiPlatform, kalshiMode, log, opts...),
		connector.New(polyPlatform, polyMode, log, opts...),
	}
}
