package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"coinwatch/internal/alerting"
)

// AlertInput is the raw user input for a new rule.
type AlertInput struct {
	CoinID    string
	Kind      string
	Threshold string
}

// ParseRule validates raw input into a rule without touching storage.
func ParseRule(in AlertInput) (alerting.Rule, error) {
	kind, err := alerting.ParseKind(in.Kind)
	if err != nil {
		return alerting.Rule{}, err
	}
	threshold, err := decimal.NewFromString(strings.TrimSpace(in.Threshold))
	if err != nil {
		return alerting.Rule{}, fmt.Errorf("%w: threshold %q is not a number", alerting.ErrInvalidRule, in.Threshold)
	}
	rule := alerting.Rule{CoinID: strings.TrimSpace(in.CoinID), Kind: kind, Threshold: threshold}
	if err := rule.Validate(); err != nil {
		return alerting.Rule{}, err
	}
	return rule, nil
}

// AddAlert stores a new rule and prints it.
func (a *App) AddAlert(ctx context.Context, in AlertInput) (alerting.Rule, error) {
	rule, err := ParseRule(in)
	if err != nil {
		return alerting.Rule{}, err
	}

	c, err := a.build(ctx)
	if err != nil {
		return alerting.Rule{}, err
	}
	defer c.Close()

	saved, err := c.rules.Upsert(ctx, rule)
	if err != nil {
		return alerting.Rule{}, err
	}
	a.printRules([]alerting.Rule{saved}, "")
	return saved, nil
}

// ListAlerts prints every rule, or only those for coinID when set.
func (a *App) ListAlerts(ctx context.Context, coinID string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var rules []alerting.Rule
	if coinID != "" {
		rules, err = c.rules.ListForCoin(ctx, coinID)
	} else {
		rules, err = c.rules.List(ctx)
	}
	if err != nil {
		return err
	}
	a.printRules(rules, "no alert rules")
	return nil
}

// RemoveAlert deletes a rule by id.
func (a *App) RemoveAlert(ctx context.Context, id string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	removed, err := c.rules.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("alert rule %q not found", id)
	}
	fmt.Fprintf(a.Out, "removed %s\n", id)
	return nil
}
