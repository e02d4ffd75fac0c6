package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/config"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/push"
)

// ConfigLister exposes the broadcast configurations of every user
type ConfigLister interface {
	Owners(ctx context.Context) ([]string, error)
	ListActive(ctx context.Context, userID string) ([]model.BroadcastConfig, error)
}

// Sender delivers one broadcast for a configuration
type Sender interface {
	Send(ctx context.Context, cfg *model.BroadcastConfig) (*model.SendLog, error)
}

// Summary counts the outcome of one pass
type Summary struct {
	Due     int
	Sent    int
	Failed  int
	Skipped int
}

// Scheduler sends due broadcasts on a cron schedule
type Scheduler struct {
	configs  ConfigLister
	sender   Sender
	config   *config.SchedulerConfig
	cron     *cron.Cron
	now      func() time.Time
	running  atomic.Bool
	mu       sync.Mutex // held while a pass runs; overlapping triggers are skipped
	stopOnce sync.Once

	// ctx is cancelled by Stop and bounds every pass
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	lc     sync.Mutex // guards closed and wg.Add
	closed bool
}

// NewScheduler validates the cron spec and timezone and creates a stopped scheduler
func NewScheduler(configs ConfigLister, sender Sender, cfg *config.SchedulerConfig) (*Scheduler, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load scheduler timezone: %w", err)
		}
		loc = l
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		configs: configs,
		sender:  sender,
		config:  cfg,
		now:     time.Now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
	return s, nil
}

// Start registers the job and starts the cron runner. It does nothing when disabled.
// Cancelling ctx cancels running passes the same way Stop does.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		log.Info().Msg("Scheduler is disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.config.Spec, s.execute); err != nil {
		return fmt.Errorf("invalid scheduler spec %q: %w", s.config.Spec, err)
	}
	context.AfterFunc(ctx, s.cancel)
	s.cron.Start()
	log.Info().Str("spec", s.config.Spec).Str("timezone", s.config.Timezone).Msg("Scheduler started")
	return nil
}

// track registers a pass with Stop. It reports false once the scheduler is stopped.
func (s *Scheduler) track() bool {
	s.lc.Lock()
	defer s.lc.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// execute runs a scheduled pass unless one is already running
func (s *Scheduler) execute() {
	if !s.run(s.ctx, "scheduled") {
		log.Warn().Msg("Broadcast pass already running, skipping this trigger")
	}
}

// run performs one pass bounded by ctx and the scheduler lifetime.
// It reports false when a pass is already running or the scheduler is stopped.
func (s *Scheduler) run(ctx context.Context, kind string) bool {
	if !s.track() {
		return false
	}
	defer s.wg.Done()
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.pass(ctx, kind)
	return true
}

func (s *Scheduler) pass(ctx context.Context, kind string) {
	s.running.Store(true)
	defer s.running.Store(false)

	startTime := time.Now()
	sum, err := s.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("Broadcast pass failed")
	}
	log.Info().
		Str("kind", kind).
		Int("due", sum.Due).
		Int("sent", sum.Sent).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Dur("duration", time.Since(startTime)).
		Msg("Broadcast pass completed")
}

// RunOnce sends every active configuration whose interval has elapsed
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	owners, err := s.configs.Owners(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list config owners: %w", err)
	}

	for _, owner := range owners {
		configs, err := s.configs.ListActive(ctx, owner)
		if err != nil {
			log.Error().Err(err).Str("user", owner).Msg("Failed to list active configs")
			continue
		}
		for i := range configs {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			cfg := &configs[i]
			if !cfg.Due(s.now()) {
				continue
			}
			sum.Due++

			entry, err := s.sender.Send(ctx, cfg)
			switch {
			case errors.Is(err, push.ErrNoActiveProducts):
				sum.Skipped++
				log.Debug().Str("user", owner).Str("config", cfg.ID).Msg("No active products, skipping")
			case err != nil:
				if ctx.Err() != nil {
					return sum, ctx.Err()
				}
				sum.Failed++
				log.Error().Err(err).Str("user", owner).Str("config", cfg.ID).Msg("Scheduled send failed")
			case entry.Status == model.SendStatusFailed:
				sum.Failed++
			default:
				sum.Sent++
			}
		}
	}
	return sum, nil
}

// Stop cancels running passes and waits for them and the cron runner to finish.
// Passes cannot be started afterwards.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping scheduler...")
		s.lc.Lock()
		s.closed = true
		s.lc.Unlock()

		s.cancel()
		<-s.cron.Stop().Done()
		s.wg.Wait()
		log.Info().Msg("Scheduler stopped")
	})
}

// IsRunning returns true if a pass is currently running
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// TryRun runs a pass immediately and waits for it.
// Returns false if a pass is already running or the scheduler is stopped.
func (s *Scheduler) TryRun(ctx context.Context) bool {
	return s.run(ctx, "manual")
}

// Trigger starts a pass in the background and returns at once.
// Returns false if a pass is already running or the scheduler is stopped.
func (s *Scheduler) Trigger() bool {
	if !s.track() {
		return false
	}
	if !s.mu.TryLock() {
		s.wg.Done()
		return false
	}
	s.running.Store(true)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		s.pass(s.ctx, "manual")
	}()
	return true
}
