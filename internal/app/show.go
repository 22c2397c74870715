package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"coinwatch/internal/alerting"
	"coinwatch/internal/ticker"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Refresh bool
}

// Show prints the quick-view snapshot and its badge.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var items []ticker.Item
	if opts.Refresh {
		items, err = c.ticker.Refresh(ctx)
	} else {
		items, err = c.ticker.Current(ctx)
	}
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.Out, "watch list is empty")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tName\tPrice (USD)\t24h %\tObserved (UTC)")
	for _, item := range items {
		observed := "-"
		if ts := item.ObservedAt(); !ts.IsZero() {
			observed = ts.Format(time.RFC3339)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			strings.ToUpper(item.Coin.Symbol),
			sanitizeInline(item.Coin.Name),
			formatNullPrice(item.PriceUSD),
			formatNullChange(item.Change24h),
			observed,
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	a.printBadge(ticker.BadgeFor(items))
	return nil
}

func (a *App) printBadge(b ticker.Badge) {
	text := b.Text
	if text == "" {
		text = "(empty)"
	}
	fmt.Fprintf(a.Out, "badge: %s %s\n", text, b.Color)
}

func (a *App) printRules(rules []alerting.Rule, empty string) {
	if len(rules) == 0 {
		fmt.Fprintln(a.Out, empty)
		return
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tCoin\tCondition")
	for _, r := range rules {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", r.ID, r.CoinID, r.Describe())
	}
	writer.Flush()
}

// formatPrice mirrors the quick view: two decimals from one dollar up,
// four significant digits below.
func formatPrice(d decimal.Decimal) string {
	if d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return "$" + d.StringFixed(2)
	}
	return "$" + strconv.FormatFloat(d.InexactFloat64(), 'g', 4, 64)
}

func formatChange(d decimal.Decimal) string {
	sign := ""
	if d.IsPositive() {
		sign = "+"
	}
	return sign + d.StringFixed(2) + "%"
}

func formatNullPrice(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return formatPrice(d.Decimal)
}

func formatNullChange(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return formatChange(d.Decimal)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
