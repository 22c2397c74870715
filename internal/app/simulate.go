package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinwatch/internal/alerting"
	"coinwatch/internal/quote"
	"coinwatch/internal/storage"
)

// SimulateOptions describe the synthetic quote fed to the evaluator.
type SimulateOptions struct {
	CoinID    string
	Name      string
	PriceUSD  decimal.Decimal
	Change24h decimal.Decimal
}

// SimulateAlert evaluates the stored rules for one coin against a synthetic
// quote and delivers notifications through the configured channels. The
// stored notified state is left untouched.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) ([]alerting.Rule, error) {
	coinID := strings.TrimSpace(opts.CoinID)
	if coinID == "" {
		return nil, errors.New("--coin is required")
	}
	if opts.PriceUSD.IsNegative() {
		return nil, errors.New("--price must not be negative")
	}

	sink := a.newSink()
	if sink == nil {
		return nil, errors.New("alerting is disabled or has no channels")
	}

	c, err := a.build(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	rules, err := c.rules.ListForCoin(ctx, coinID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		fmt.Fprintf(a.Out, "no alert rules for %s\n", coinID)
		return []alerting.Rule{}, nil
	}

	scratch := alerting.NewRuleStore(storage.NewMemoryStore())
	for _, rule := range rules {
		if _, err := scratch.Upsert(ctx, rule); err != nil {
			return nil, err
		}
	}

	evaluator := alerting.NewEvaluator(scratch, staticQuote(coinID, opts), sink, alerting.EvaluatorOptions{}, a.Logger)
	triggered, err := evaluator.CheckAll(ctx)
	if err != nil {
		return nil, err
	}
	a.printRules(triggered, "no alerts triggered")
	return triggered, nil
}

func staticQuote(coinID string, opts SimulateOptions) quote.Source {
	name := opts.Name
	if name == "" {
		name = coinID
	}
	q := quote.Quote{
		CoinID:     coinID,
		Symbol:     coinID,
		Name:       name,
		PriceUSD:   opts.PriceUSD,
		Change24h:  opts.Change24h,
		ObservedAt: time.Now().UTC(),
		Source:     "simulated",
	}
	return quote.SourceFunc(func(_ context.Context, id string) (quote.Quote, bool) {
		if id != coinID {
			return quote.Quote{}, false
		}
		return q, true
	})
}
