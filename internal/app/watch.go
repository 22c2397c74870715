package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"coinwatch/internal/watchlist"
)

// WatchAdd resolves identifier to a canonical coin and appends it to the
// watch list.
func (a *App) WatchAdd(ctx context.Context, identifier string) error {
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

	coin := watchlist.Coin{ID: q.CoinID, Symbol: strings.ToUpper(q.Symbol), Name: q.Name}
	added, err := c.watch.Add(ctx, coin)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(a.Out, "%s is already watched\n", coin.ID)
		return nil
	}
	fmt.Fprintf(a.Out, "watching %s (%s)\n", coin.ID, coin.Symbol)
	return nil
}

// WatchList prints the watch list in order.
func (a *App) WatchList(ctx context.Context) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	coins, err := c.watch.List(ctx)
	if err != nil {
		return err
	}
	if len(coins) == 0 {
		fmt.Fprintln(a.Out, "watch list is empty")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tID\tSymbol\tName")
	for i, coin := range coins {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", i+1, coin.ID, coin.Symbol, sanitizeInline(coin.Name))
	}
	return writer.Flush()
}

// WatchRemove drops a coin from the watch list.
func (a *App) WatchRemove(ctx context.Context, id string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	removed, err := c.watch.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%s is not on the watch list", id)
	}
	fmt.Fprintf(a.Out, "removed %s\n", id)
	return nil
}
