package alerting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"coinwatch/internal/quote"
)

// Kind selects the predicate a rule applies to a quote.
type Kind string

const (
	PriceAtLeast     Kind = "price_at_least"
	PriceAtMost      Kind = "price_at_most"
	Change24hAtLeast Kind = "change24h_at_least"
	Change24hAtMost  Kind = "change24h_at_most"
)

// Kinds lists every supported rule kind.
var Kinds = []Kind{PriceAtLeast, PriceAtMost, Change24hAtLeast, Change24hAtMost}

// ErrInvalidRule is returned for rules that fail validation.
var ErrInvalidRule = errors.New("invalid alert rule")

var kindAliases = map[string]Kind{
	"price_gte":     PriceAtLeast,
	"price_lte":     PriceAtMost,
	"change24h_gte": Change24hAtLeast,
	"change24h_lte": Change24hAtMost,
	"above":         PriceAtLeast,
	"below":         PriceAtMost,
}

// ParseKind accepts the canonical kind names and their short aliases.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if string(k) == normalized {
			return k, nil
		}
	}
	if k, ok := kindAliases[normalized]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, s)
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts aliases written by other clients of the rule
// document. Unknown names are kept verbatim so Validate can report them.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if parsed, err := ParseKind(raw); err == nil {
		*k = parsed
		return nil
	}
	*k = Kind(raw)
	return nil
}

// Rule is a user-defined alert condition on one coin.
type Rule struct {
	ID        string          `json:"id"`
	CoinID    string          `json:"coinId"`
	Kind      Kind            `json:"type"`
	Threshold decimal.Decimal `json:"threshold"`
}

// MarshalJSON writes the threshold as a JSON number.
func (r Rule) MarshalJSON() ([]byte, error) {
	type plain Rule
	return json.Marshal(struct {
		plain
		Threshold json.Number `json:"threshold"`
	}{plain: plain(r), Threshold: json.Number(r.Threshold.String())})
}

// Validate checks the fields a user supplies.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.CoinID) == "" {
		return fmt.Errorf("%w: coin id is required", ErrInvalidRule)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, r.Kind)
	}
	return nil
}

// Evaluate reports whether q satisfies the rule. Comparisons are inclusive,
// so price_at_least and price_at_most both hold when price equals threshold.
func Evaluate(rule Rule, q quote.Quote) bool {
	switch rule.Kind {
	case PriceAtLeast:
		return q.PriceUSD.GreaterThanOrEqual(rule.Threshold)
	case PriceAtMost:
		return q.PriceUSD.LessThanOrEqual(rule.Threshold)
	case Change24hAtLeast:
		return q.Change24h.GreaterThanOrEqual(rule.Threshold)
	case Change24hAtMost:
		return q.Change24h.LessThanOrEqual(rule.Threshold)
	default:
		return false
	}
}

// Describe renders the condition for humans, e.g. "price ≥ $50000".
func (r Rule) Describe() string {
	switch r.Kind {
	case PriceAtLeast:
		return fmt.Sprintf("price ≥ $%s", r.Threshold.String())
	case PriceAtMost:
		return fmt.Sprintf("price ≤ $%s", r.Threshold.String())
	case Change24hAtLeast:
		return fmt.Sprintf("24h change ≥ %s%%", r.Threshold.String())
	case Change24hAtMost:
		return fmt.Sprintf("24h change ≤ %s%%", r.Threshold.String())
	default:
		return string(r.Kind)
	}
}
