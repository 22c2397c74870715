package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"coinwatch/internal/alerting"
	"coinwatch/internal/config"
	"coinwatch/internal/fetcher"
	"coinwatch/internal/metrics"
	"coinwatch/internal/quote"
	"coinwatch/internal/service"
	"coinwatch/internal/settings"
	"coinwatch/internal/storage"
	"coinwatch/internal/ticker"
	"coinwatch/internal/version"
	"coinwatch/internal/watchlist"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer

	// QuoteSource replaces the live providers when set.
	QuoteSource quote.Source
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// components is the object graph shared by the commands.
type components struct {
	store     storage.KVStore
	closer    func()
	cache     *quote.Cache
	rules     *alerting.RuleStore
	watch     *watchlist.Store
	settings  *settings.Store
	ticker    *ticker.Snapshotter
	delivery  *alerting.ToggleSink
	evaluator *alerting.Evaluator
}

func (c *components) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (a *App) userAgent() string {
	if a.Config.Providers.UserAgent != "" {
		return a.Config.Providers.UserAgent
	}
	return version.UserAgent()
}

func (a *App) newProviders() (*fetcher.Coingecko, *fetcher.Coinpaprika) {
	p := a.Config.Providers
	coingecko := fetcher.NewCoingecko(fetcher.CoingeckoOptions{
		BaseURL:            p.Coingecko.BaseURL,
		DemoAPIKey:         p.Coingecko.DemoAPIKey,
		RateLimitPerMinute: p.Coingecko.RateLimitPerMinute,
		Timeout:            p.RequestTimeout,
		UserAgent:          a.userAgent(),
	}, a.Logger)

	coinpaprika := fetcher.NewCoinpaprika(fetcher.CoinpaprikaOptions{
		BaseURL:            p.Coinpaprika.BaseURL,
		RateLimitPerMinute: p.Coinpaprika.RateLimitPerMinute,
		Timeout:            p.RequestTimeout,
		UserAgent:          a.userAgent(),
	}, a.Logger)

	return coingecko, coinpaprika
}

// newSink builds the configured notification channels. It returns nil when
// alerting is disabled.
func (a *App) newSink() alerting.Sink {
	if !a.Config.Alerting.Enabled {
		return nil
	}

	var sinks alerting.MultiSink
	for _, channel := range a.Config.Alerting.Channels {
		switch channel {
		case "log":
			sinks = append(sinks, alerting.NewLogSink(a.Logger))
		case "telegram":
			// configured below
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alert channel ignored")
		}
	}
	if tg := a.Config.Alerting.Telegram; tg.Enabled {
		sinks = append(sinks, alerting.NewTelegramSink(tg.BotToken, tg.ChatID, tg.APIBase, tg.Timeout, a.Logger))
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

// build opens storage and wires the domain services.
func (a *App) build(ctx context.Context) (*components, error) {
	store, closer, err := storage.Open(ctx, a.Config.Storage)
	if err != nil {
		return nil, err
	}

	c := &components{store: store, closer: closer}
	source := a.QuoteSource
	if source == nil {
		coingecko, coinpaprika := a.newProviders()
		source = quote.NewResolver(coingecko, coinpaprika, quote.ResolverOptions{}, a.Logger)
	}

	c.cache = quote.NewCache(source, quote.CacheOptions{TTL: a.Config.Cache.TTL}, a.Logger)
	c.rules = alerting.NewRuleStore(store)
	c.watch = watchlist.NewStore(store)
	c.settings = settings.NewStore(store)
	c.ticker = ticker.NewSnapshotter(store, c.watch, c.cache, a.Config.Ticker.Size, a.Logger)
	c.delivery = alerting.NewToggleSink(a.newSink())
	c.evaluator = alerting.NewEvaluator(c.rules, c.cache, c.delivery, alerting.EvaluatorOptions{}, a.Logger)
	return c, nil
}

func (a *App) newService(c *components) *service.Service {
	return service.New(a.Config, service.Deps{
		Store:     c.store,
		Evaluator: c.evaluator,
		Ticker:    c.ticker,
		Settings:  c.settings,
		Delivery:  c.delivery,
		Cache:     c.cache,
	}, a.Logger)
}

// Run executes the long-running refresh service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if a.Config.Storage.ResolveBackend() == config.BackendMemory {
		a.Logger.Warn().Msg("storage backend is memory; rules and settings are lost on exit")
	}

	svc := a.newService(c)

	g, gctx := errgroup.WithContext(ctx)
	if a.Config.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, a.Config.Metrics.Addr, a.Logger)
		})
	}
	g.Go(func() error {
		a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting refresh service")
		return svc.Run(gctx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh service stopped")
	return nil
}

// Check runs a single refresh pass and prints the triggered rules.
func (a *App) Check(ctx context.Context) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	start := time.Now()
	pass, err := a.newService(c).RunPass(ctx)
	metrics.PassDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if pass.Badge != nil {
		a.printBadge(*pass.Badge)
	}
	a.printRules(pass.Triggered, "no alerts triggered")
	return nil
}
