package di

import (
	"context"
	"fmt"
	"time"

	"BandPilot/internal/domain/repository"
	"BandPilot/internal/handler/api"
	mid "BandPilot/internal/middleware"
	internalrepo "BandPilot/internal/repository"
	"BandPilot/internal/service/binance"
	apimetrics "BandPilot/internal/service/metrics"
	"BandPilot/internal/service/provider"
	"BandPilot/internal/service/ratelimit"
	"BandPilot/internal/services/bands"
	"BandPilot/internal/usecase"
	pkgcache "BandPilot/pkg/cache"
	pkgch "BandPilot/pkg/clickhouse"
	"BandPilot/pkg/config"
	pkghttp "BandPilot/pkg/http"
	pkgkafka "BandPilot/pkg/kafka"
	applogger "BandPilot/pkg/logger"
	"BandPilot/pkg/metrics"
	"BandPilot/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRedisCache connects to Redis when it backs the store or the build lock.
// It returns nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, func(), error) {
	if cfg.Store.Backend != "redis" && !cfg.Redis.Lock {
		return nil, func() {}, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, 2, 4*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideClickHouseClient connects to ClickHouse and creates the series schema when it
// is the store backend. It returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Store.Backend != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.SeriesSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideSeriesStore selects the series store by cfg.Store.Backend.
func ProvideSeriesStore(cfg *config.Config, rc *pkgcache.RedisCache, ch *pkgch.Client, l *applogger.Logger) (repository.SeriesStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		return internalrepo.NewRedisSeriesStore(rc), nil
	case "clickhouse":
		return internalrepo.NewCHSeriesStore(ch, l), nil
	case "file", "":
		return internalrepo.NewCSVSeriesStore(cfg.Store.Dir, l), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// ProvideLocker returns the Redis build lock when enabled.
func ProvideLocker(cfg *config.Config, rc *pkgcache.RedisCache) repository.Locker {
	if !cfg.Redis.Lock || rc == nil {
		return nil
	}
	return internalrepo.NewCacheLocker(rc)
}

// ProvideSeriesBuilder creates the series builder with the configured fetch policy.
func ProvideSeriesBuilder(cfg *config.Config, store repository.SeriesStore, locker repository.Locker, m repository.Metrics, l *applogger.Logger) *usecase.SeriesBuilder {
	opts := []usecase.BuilderOption{
		usecase.WithFetchPolicy(usecase.FetchPolicy{Disabled: cfg.Fetch.Disabled, OnlyCache: cfg.Fetch.OnlyCache}),
		usecase.WithBuildMetrics(m),
		usecase.WithBuildLogger(l),
	}
	if locker != nil {
		opts = append(opts, usecase.WithLocker(locker, cfg.Fetch.BuildLock))
	}
	return usecase.NewSeriesBuilder(store, opts...)
}

// ProvideProviderOptions shares one HTTP client and limiter between providers.
func ProvideProviderOptions(cfg *config.Config, l *applogger.Logger) provider.Options {
	return provider.Options{
		Client:      pkghttp.NewClient(pkghttp.WithTimeout(cfg.Fetch.Timeout), pkghttp.WithUserAgent("bandpilot-fetcher/1.0")),
		Limiter:     ratelimit.New(),
		RatePerSec:  cfg.Fetch.RatePerSec,
		Burst:       cfg.Fetch.Burst,
		MaxFailures: cfg.Fetch.Breaker.MaxFailures,
		OpenTimeout: cfg.Fetch.Breaker.OpenTimeout,
		Logger:      l,
	}
}

// ProvideSentimentFetcher creates the fear and greed provider.
func ProvideSentimentFetcher(cfg *config.Config, o provider.Options) *provider.Alternative {
	return provider.NewAlternative(cfg.Providers.AlternativeURL, o)
}

// ProvidePriceFetcher creates the daily price provider.
func ProvidePriceFetcher(cfg *config.Config, o provider.Options) *provider.Nasdaq {
	return provider.NewNasdaq(cfg.Providers.NasdaqURL, cfg.Providers.NasdaqAPIKey, o)
}

// ProvideSpotSource creates the Binance ticker client.
func ProvideSpotSource(cfg *config.Config, l *applogger.Logger) *binance.Client {
	return binance.New(cfg.Providers.BinanceWSURL, cfg.Providers.Symbol, cfg.Fetch.Timeout, l)
}

// ProvideBandsUseCase wires both classifiers.
func ProvideBandsUseCase(
	cfg *config.Config,
	builder *usecase.SeriesBuilder,
	sentiment *provider.Alternative,
	price *provider.Nasdaq,
	spot *binance.Client,
	l *applogger.Logger,
) *usecase.BandsUseCase {
	opts := []bands.CurveOption{bands.WithCurveMultiplier(cfg.Bands.CurveMultiplier)}
	if cfg.Bands.Fibonacci {
		opts = append(opts, bands.WithFibonacciMultipliers())
	}
	uc := usecase.NewBandsUseCase(builder, sentiment, price, spot, usecase.BandsConfig{
		Start:        cfg.StartDate(),
		TTL:          cfg.Server.ClassifierTTL,
		Timeout:      cfg.Fetch.Timeout * 2,
		CurveOptions: opts,
	}, l)
	apimetrics.Register()
	uc.OnCacheLookup(func(classifier, result string) {
		apimetrics.ClassifierCacheHits.WithLabelValues(classifier, result).Inc()
	})
	return uc
}

// ProvideDecisionPublisher journals decisions to Kafka through a buffering pipeline when
// enabled, to the log otherwise.
func ProvideDecisionPublisher(cfg *config.Config, l *applogger.Logger) (repository.DecisionPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NewLogDecisionPublisher(l), func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := mid.NewJournalPipeline(internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.Topic), l)
	pub.Start(context.Background())
	return pub, func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close", applogger.Error(err))
		}
	}, nil
}

// ProvideReplayUseCase creates the paper replay loop.
func ProvideReplayUseCase(pub repository.DecisionPublisher, m repository.Metrics, l *applogger.Logger) *usecase.ReplayUseCase {
	return usecase.NewReplayUseCase(pub, m, l)
}

// ProvideBandsHandler creates the band API routes.
func ProvideBandsHandler(uc *usecase.BandsUseCase, l *applogger.Logger) *api.BandsHandler {
	return api.NewBandsHandler(uc, l)
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.BandsHandler, l *applogger.Logger) *pkghttp.Server {
	return pkghttp.NewServer(h, l,
		pkghttp.WithPort(cfg.Server.Port),
		pkghttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		pkghttp.WithCORS(cfg.Server.CORS),
	)
}

// ProvideCore groups what the command line tools need.
func ProvideCore(
	cfg *config.Config,
	builder *usecase.SeriesBuilder,
	sentiment *provider.Alternative,
	price *provider.Nasdaq,
	b *usecase.BandsUseCase,
	replay *usecase.ReplayUseCase,
	l *applogger.Logger,
) *Core {
	return &Core{Config: cfg, Builder: builder, Sentiment: sentiment, Price: price, Bands: b, Replay: replay, Logger: l}
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, b *usecase.BandsUseCase, srv *pkghttp.Server, l *applogger.Logger) *server.App {
	return server.New(cfg, b, srv, l)
}

// Core is the wired domain for one-shot commands.
type Core struct {
	Config    *config.Config
	Builder   *usecase.SeriesBuilder
	Sentiment repository.Fetcher
	Price     repository.Fetcher
	Bands     *usecase.BandsUseCase
	Replay    *usecase.ReplayUseCase
	Logger    *applogger.Logger
}
