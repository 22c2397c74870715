package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"coinwatch/internal/alerting"
	"coinwatch/internal/config"
	"coinwatch/internal/metrics"
	"coinwatch/internal/quote"
	"coinwatch/internal/scheduler"
	"coinwatch/internal/settings"
	"coinwatch/internal/storage"
	"coinwatch/internal/ticker"
)

// Deps are the collaborators a refresh pass drives.
type Deps struct {
	Store     storage.KVStore
	Evaluator *alerting.Evaluator
	Ticker    *ticker.Snapshotter
	Settings  *settings.Store
	// Delivery is switched by the enableDesktop preference before each pass.
	Delivery *alerting.ToggleSink
	Cache    *quote.Cache
}

// Service orchestrates ticker refreshes and alert evaluation.
type Service struct {
	scheduler *scheduler.Scheduler
	deps      Deps
	logger    zerolog.Logger

	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the refresh service. The scheduler interval follows the
// user's refresh preference when it is set to auto.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := deps.Store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	s := &Service{
		deps:    deps,
		logger:  logger.With().Str("component", "service").Logger(),
		locker:  locker,
		lockKey: cfg.Scheduler.AdvisoryLockKey,
	}
	if cfg.Scheduler.Interval > 0 {
		s.scheduler = scheduler.New(scheduler.Options{
			Interval:     cfg.Scheduler.Interval,
			AlignToStart: cfg.Scheduler.AlignToBucket,
			StartupDelay: cfg.Scheduler.StartupDelay,
			RunOnStart:   cfg.Scheduler.RunOnStart,
			NextInterval: s.NextInterval,
		}, logger)
	}
	return s
}

// Run begins the periodic refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Tick)
}

// NextInterval returns the user's refresh interval when refreshMode is auto,
// or zero to keep the configured interval.
func (s *Service) NextInterval(ctx context.Context) time.Duration {
	if s.deps.Settings == nil {
		return 0
	}
	prefs, err := s.deps.Settings.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load settings; keeping configured interval")
		return 0
	}
	if prefs.RefreshMode != settings.RefreshAuto {
		return 0
	}
	return prefs.RefreshInterval()
}

// Tick runs one refresh pass unless another process holds the advisory lock.
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("at", at).Msg("skip pass because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executePass(ctx, at)
}

// Pass is the outcome of one refresh pass.
type Pass struct {
	Triggered []alerting.Rule
	Snapshot  []ticker.Item
	Badge     *ticker.Badge
}

// RunPass executes a pass without the lock and returns its results.
func (s *Service) RunPass(ctx context.Context) (Pass, error) {
	return s.pass(ctx)
}

func (s *Service) executePass(ctx context.Context, at time.Time) error {
	start := time.Now()
	result, err := s.pass(ctx)
	metrics.PassDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	event := s.logger.Info().Time("at", at).Int("triggered", len(result.Triggered))
	if result.Badge != nil {
		event = event.Str("badge", result.Badge.Text).Str("badge_color", result.Badge.Color)
	}
	event.Msg("refresh pass complete")
	return nil
}

func (s *Service) pass(ctx context.Context) (Pass, error) {
	prefs := settings.Defaults()
	if s.deps.Settings != nil {
		loaded, err := s.deps.Settings.Load(ctx)
		if err != nil {
			return Pass{}, fmt.Errorf("load settings: %w", err)
		}
		prefs = loaded
	}
	if s.deps.Delivery != nil {
		s.deps.Delivery.SetEnabled(prefs.Notifications.EnableDesktop)
	}

	var result Pass
	if prefs.Notifications.EnableBadge && s.deps.Ticker != nil {
		items, err := s.deps.Ticker.Refresh(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("ticker refresh failed")
		} else {
			badge := ticker.BadgeFor(items)
			result.Snapshot = items
			result.Badge = &badge
		}
	}

	if s.deps.Evaluator != nil {
		triggered, err := s.deps.Evaluator.CheckAll(ctx)
		if err != nil {
			return result, fmt.Errorf("evaluate alerts: %w", err)
		}
		result.Triggered = triggered
	}

	if s.deps.Cache != nil {
		if pruned := s.deps.Cache.Prune(); pruned > 0 {
			s.logger.Debug().Int("pruned", pruned).Msg("expired quotes pruned")
		}
	}
	return result, nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
