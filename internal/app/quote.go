package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"coinwatch/internal/fetcher"
)

// ErrNoQuote is returned when no provider could price an identifier.
var ErrNoQuote = errors.New("no price data available")

// Quote resolves identifier and prints the quote.
func (a *App) Quote(ctx context.Context, identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return errors.New("identifier is required")
	}

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	q, ok := c.cache.Get(ctx, identifier)
	if !ok {
		return fmt.Errorf("%s: %w", identifier, ErrNoQuote)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSymbol\tName\tPrice (USD)\t24h %\tObserved (UTC)\tSource")
	fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		q.CoinID,
		strings.ToUpper(q.Symbol),
		sanitizeInline(q.Name),
		formatPrice(q.PriceUSD),
		formatChange(q.Change24h),
		q.ObservedAt.UTC().Format("2006-01-02 15:04:05"),
		q.Source,
	)
	return writer.Flush()
}

// Search prints the coin directory entries matching query.
func (a *App) Search(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return errors.New("query is required")
	}

	coingecko, _ := a.newProviders()
	items, err := coingecko.Directory(ctx, strings.TrimSpace(query))
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	return a.printDirectory(items, "no coins found")
}

// TopOptions configure the top command.
type TopOptions struct {
	Page    int
	PerPage int
}

// Top prints coins ordered by market cap.
func (a *App) Top(ctx context.Context, opts TopOptions) error {
	coingecko, _ := a.newProviders()
	rows, err := coingecko.TopMarkets(ctx, opts.Page, opts.PerPage)
	if err != nil {
		return fmt.Errorf("list top coins: %w", err)
	}
	return a.printDirectory(fetcher.ListingItems(rows), "no coins listed")
}

func (a *App) printDirectory(items []fetcher.DirectoryItem, empty string) error {
	if len(items) == 0 {
		fmt.Fprintln(a.Out, empty)
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSymbol\tName\tPrice (USD)\t24h %")
	for _, item := range items {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			item.Symbol,
			sanitizeInline(item.Name),
			formatNullPrice(item.PriceUSD),
			formatNullChange(item.Change24h),
		)
	}
	return writer.Flush()
}
