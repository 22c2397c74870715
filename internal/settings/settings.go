// Package settings holds user preferences persisted alongside alert rules.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"coinwatch/internal/storage"
)

// Key is the storage key holding the settings document.
const Key = "settings"

// RefreshMode controls whether the scheduler follows the user's interval.
type RefreshMode string

const (
	RefreshNone   RefreshMode = "none"
	RefreshManual RefreshMode = "manual"
	RefreshAuto   RefreshMode = "auto"
)

// ErrInvalidSetting is returned for unknown keys or unacceptable values.
var ErrInvalidSetting = errors.New("invalid setting")

var currencies = map[string]struct{}{"USD": {}, "CNY": {}, "USDT": {}, "USDC": {}, "EUR": {}}

// Notifications groups alert delivery preferences.
type Notifications struct {
	EnableDesktop   bool `json:"enableDesktop" mapstructure:"enableDesktop"`
	EnableBadge     bool `json:"enableBadge" mapstructure:"enableBadge"`
	EnableSound     bool `json:"enableSound" mapstructure:"enableSound"`
	ThrottleMinutes int  `json:"throttleMinutes" mapstructure:"throttleMinutes"`
}

// Settings is the user preference document.
type Settings struct {
	RefreshMode            RefreshMode   `json:"refreshMode" mapstructure:"refreshMode"`
	RefreshIntervalMinutes int           `json:"refreshIntervalMinutes" mapstructure:"refreshIntervalMinutes"`
	Currency               string        `json:"currency" mapstructure:"currency"`
	Notifications          Notifications `json:"notifications" mapstructure:"notifications"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{
		RefreshMode:            RefreshManual,
		RefreshIntervalMinutes: 5,
		Currency:               "USD",
		Notifications: Notifications{
			EnableDesktop:   true,
			EnableBadge:     true,
			EnableSound:     false,
			ThrottleMinutes: 5,
		},
	}
}

// Normalize clamps out-of-range values.
func (s Settings) Normalize() Settings {
	if s.RefreshIntervalMinutes <= 0 {
		s.RefreshIntervalMinutes = Defaults().RefreshIntervalMinutes
	}
	if s.Notifications.ThrottleMinutes < 0 {
		s.Notifications.ThrottleMinutes = 0
	}
	return s
}

// Validate checks enumerated fields.
func (s Settings) Validate() error {
	switch s.RefreshMode {
	case RefreshNone, RefreshManual, RefreshAuto:
	default:
		return fmt.Errorf("%w: refreshMode %q", ErrInvalidSetting, s.RefreshMode)
	}
	if _, ok := currencies[s.Currency]; !ok {
		return fmt.Errorf("%w: currency %q", ErrInvalidSetting, s.Currency)
	}
	return nil
}

// RefreshInterval is the automatic refresh period, at least one minute.
func (s Settings) RefreshInterval() time.Duration {
	minutes := s.RefreshIntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// Store reads and writes the settings document.
type Store struct {
	kv storage.KVStore
}

// NewStore constructs a Store.
func NewStore(kv storage.KVStore) *Store {
	return &Store{kv: kv}
}

// Load returns the stored settings merged over the defaults. Fields missing
// from the stored document keep their default values.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	merged := Defaults()
	ok, err := storage.GetJSON(ctx, s.kv, Key, &merged)
	if err != nil {
		return Defaults(), err
	}
	if !ok {
		return Defaults(), nil
	}
	return merged.Normalize(), nil
}

// Save normalizes, validates, and persists settings.
func (s *Store) Save(ctx context.Context, next Settings) (Settings, error) {
	next = next.Normalize()
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	if err := storage.SetJSON(ctx, s.kv, Key, next); err != nil {
		return Settings{}, err
	}
	return next, nil
}

// Set updates a single field addressed by its document path, for example
// "refreshMode" or "notifications.enableBadge", and persists the result.
func (s *Store) Set(ctx context.Context, path, value string) (Settings, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	next, err := Apply(current, path, value)
	if err != nil {
		return Settings{}, err
	}
	return s.Save(ctx, next)
}

// Apply returns current with the field at path replaced by value, converting
// the string to the field's type.
func Apply(current Settings, path, value string) (Settings, error) {
	parts := strings.Split(strings.TrimSpace(path), ".")
	if len(parts) == 0 || len(parts) > 2 || parts[0] == "" {
		return Settings{}, fmt.Errorf("%w: key %q", ErrInvalidSetting, path)
	}

	var patch map[string]any
	if len(parts) == 1 {
		patch = map[string]any{parts[0]: value}
	} else {
		patch = map[string]any{parts[0]: map[string]any{parts[1]: value}}
	}

	next := current
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &next,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		MatchName:        strings.EqualFold,
	})
	if err != nil {
		return Settings{}, err
	}
	if err := decoder.Decode(patch); err != nil {
		return Settings{}, fmt.Errorf("%w: %s=%s: %v", ErrInvalidSetting, path, value, err)
	}
	if len(parts) == 1 && strings.EqualFold(parts[0], "currency") {
		next.Currency = strings.ToUpper(next.Currency)
	}
	return next, nil
}
