package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"coinwatch/internal/ticker"
)

// ExportOptions hold parameters for exporting the ticker snapshot.
type ExportOptions struct {
	PNGPath string
	CSVPath string
	Refresh bool
}

// Export renders the ticker snapshot as CSV and/or a PNG bar chart of 24h change.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

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
		a.Logger.Info().Msg("watch list is empty; nothing to export")
		return nil
	}

	a.Logger.Info().Int("coins", len(items)).Msg("exporting ticker snapshot")

	if opts.CSVPath != "" {
		if err := writeSnapshotCSV(opts.CSVPath, items); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotPNG(opts.PNGPath, items); err != nil {
			return err
		}
	}

	return nil
}

func writeSnapshotCSV(path string, items []ticker.Item) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"coin_id", "symbol", "name", "price_usd", "change_24h_pct", "observed_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, item := range items {
		price, change, observed := "", "", ""
		if item.PriceUSD.Valid {
			price = item.PriceUSD.Decimal.String()
		}
		if item.Change24h.Valid {
			change = item.Change24h.Decimal.String()
		}
		if ts := item.ObservedAt(); !ts.IsZero() {
			observed = ts.Format(time.RFC3339)
		}
		record := []string{item.Coin.ID, item.Coin.Symbol, item.Coin.Name, price, change, observed}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSnapshotPNG(path string, items []ticker.Item) error {
	bars := make([]chart.Value, 0, len(items))
	for _, item := range items {
		if !item.Change24h.Valid {
			continue
		}
		change := item.Change24h.Decimal.InexactFloat64()
		bars = append(bars, chart.Value{
			Label: barLabel(item),
			Value: change,
			Style: chart.Style{FillColor: barColor(change), StrokeColor: barColor(change)},
		})
	}
	if len(bars) == 0 {
		return errors.New("no coin in the snapshot has 24h change data")
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	graph := chart.BarChart{
		Title:        "24h change (%)",
		Width:        960,
		Height:       540,
		BarWidth:     80,
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func barLabel(item ticker.Item) string {
	if item.Coin.Symbol != "" {
		return strings.ToUpper(item.Coin.Symbol)
	}
	return item.Coin.ID
}

func barColor(change float64) drawing.Color {
	switch {
	case change > 0:
		return drawing.ColorFromHex(ticker.ColorUp)
	case change < 0:
		return drawing.ColorFromHex(ticker.ColorDown)
	default:
		return drawing.ColorFromHex(ticker.ColorFlat)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
