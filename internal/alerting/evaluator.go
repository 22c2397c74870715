package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"coinwatch/internal/metrics"
	"coinwatch/internal/quote"
)

// EvaluatorOptions tune the evaluator.
type EvaluatorOptions struct {
	// Concurrency caps parallel quote lookups; zero means unlimited.
	Concurrency int
	Now         func() time.Time
}

// Evaluator checks every rule against current quotes and notifies once per
// triggered episode.
type Evaluator struct {
	rules  *RuleStore
	quotes quote.Source
	sink   Sink
	opts   EvaluatorOptions
	logger zerolog.Logger
}

// NewEvaluator constructs an Evaluator. sink may be nil to track state
// without delivering notifications.
func NewEvaluator(rules *RuleStore, quotes quote.Source, sink Sink, opts EvaluatorOptions, logger zerolog.Logger) *Evaluator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Evaluator{
		rules:  rules,
		quotes: quotes,
		sink:   sink,
		opts:   opts,
		logger: logger.With().Str("component", "evaluator").Logger(),
	}
}

// CheckAll runs one evaluation pass and returns the rules whose condition
// currently holds. Only storage failures are returned as errors.
func (e *Evaluator) CheckAll(ctx context.Context) ([]Rule, error) {
	rules, err := e.rules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	if len(rules) == 0 {
		metrics.AlertsTriggeredGauge.Set(0)
		return []Rule{}, nil
	}

	quotes := e.resolveAll(ctx, distinctCoins(rules))

	notified, err := e.rules.Notified(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notified state: %w", err)
	}

	triggered := make([]Rule, 0)
	for _, rule := range rules {
		q, ok := quotes[rule.CoinID]
		if !ok {
			// unknown price: re-arm so the next pass can notify
			delete(notified, rule.ID)
			continue
		}

		if !Evaluate(rule, q) {
			delete(notified, rule.ID)
			continue
		}

		triggered = append(triggered, rule)
		if _, already := notified[rule.ID]; already {
			continue
		}
		e.notify(ctx, rule, q)
		notified[rule.ID] = e.opts.Now().UnixMilli()
	}

	if err := e.rules.SaveNotified(ctx, notified); err != nil {
		return triggered, fmt.Errorf("save notified state: %w", err)
	}

	metrics.AlertsTriggeredGauge.Set(float64(len(triggered)))
	e.logger.Debug().Int("rules", len(rules)).Int("triggered", len(triggered)).Msg("evaluation pass complete")
	return triggered, nil
}

func (e *Evaluator) resolveAll(ctx context.Context, coinIDs []string) map[string]quote.Quote {
	var (
		mu     sync.Mutex
		quotes = make(map[string]quote.Quote, len(coinIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	if e.opts.Concurrency > 0 {
		g.SetLimit(e.opts.Concurrency)
	}
	for _, coinID := range coinIDs {
		g.Go(func() error {
			q, ok := e.quotes.Get(gctx, coinID)
			if !ok {
				e.logger.Debug().Str("coin_id", coinID).Msg("price unavailable")
				return nil
			}
			mu.Lock()
			quotes[coinID] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return quotes
}

func (e *Evaluator) notify(ctx context.Context, rule Rule, q quote.Quote) {
	if e.sink == nil {
		return
	}
	title, body := RenderNotification(rule, q)
	if err := e.sink.Show(ctx, title, body); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		e.logger.Error().Err(err).Str("rule_id", rule.ID).Str("coin_id", rule.CoinID).Msg("failed to deliver notification")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	e.logger.Info().Str("rule_id", rule.ID).Str("coin_id", rule.CoinID).Str("condition", rule.Describe()).Msg("alert notified")
}

func distinctCoins(rules []Rule) []string {
	seen := make(map[string]struct{}, len(rules))
	coins := make([]string, 0, len(rules))
	for _, r := range rules {
		if _, ok := seen[r.CoinID]; ok {
			continue
		}
		seen[r.CoinID] = struct{}{}
		coins = append(coins, r.CoinID)
	}
	return coins
}
