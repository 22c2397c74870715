package ticker

import (
	"github.com/shopspring/decimal"
)

// Badge colours.
const (
	ColorUp    = "#16a34a"
	ColorDown  = "#dc2626"
	ColorFlat  = "#475569"
	ColorEmpty = "#94a3b8"
)

// Badge is the compact text shown for the lead snapshot coin.
type Badge struct {
	Text  string
	Color string
}

var (
	thousand   = decimal.NewFromInt(1000)
	one        = decimal.NewFromInt(1)
	ten        = decimal.NewFromInt(10)
	bigMoveAbs = decimal.NewFromInt(5)
)

// BadgeFor renders the badge for a snapshot: it reflects the first item only.
func BadgeFor(items []Item) Badge {
	if len(items) == 0 {
		return Badge{Color: ColorEmpty}
	}
	return FormatBadge(items[0])
}

// FormatBadge renders one item. A 24h move of 5% or more replaces the price
// with an arrow.
func FormatBadge(item Item) Badge {
	if !item.PriceUSD.Valid {
		return Badge{Color: ColorEmpty}
	}

	change := decimal.Zero
	if item.Change24h.Valid {
		change = item.Change24h.Decimal
	}

	if change.Abs().GreaterThanOrEqual(bigMoveAbs) {
		if change.IsPositive() {
			return Badge{Text: "↑!", Color: ColorUp}
		}
		return Badge{Text: "↓!", Color: ColorDown}
	}

	color := ColorFlat
	switch change.Sign() {
	case 1:
		color = ColorUp
	case -1:
		color = ColorDown
	}
	return Badge{Text: compactPrice(item.PriceUSD.Decimal), Color: color}
}

func compactPrice(price decimal.Decimal) string {
	switch {
	case price.GreaterThanOrEqual(thousand):
		return price.Div(thousand).Round(0).String() + "k"
	case price.GreaterThanOrEqual(one):
		return price.Round(0).String()
	default:
		return threeSignificant(price)
	}
}

// threeSignificant formats a value below one with three significant digits.
func threeSignificant(price decimal.Decimal) string {
	if !price.IsPositive() {
		return price.StringFixed(2)
	}
	leadingZeros := int32(0)
	for scaled := price; scaled.LessThan(one); scaled = scaled.Mul(ten) {
		leadingZeros++
	}
	return price.StringFixed(leadingZeros + 2)
}
