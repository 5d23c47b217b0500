package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

const pruneInterval = 24 * time.Hour

// Pruner deletes events older than the retention window on a schedule.
type Pruner struct {
	journal   Journal
	retention time.Duration
	scheduler gocron.Scheduler
	started   bool
	logger    logger.Logger
}

func NewPruner(j Journal, retentionDays int, log logger.Logger) (*Pruner, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.New().Wrap(ErrPruneFailed, err)
	}

	return &Pruner{
		journal:   j,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// Start prunes once immediately and then every pruneInterval.
func (p *Pruner) Start(ctx context.Context) error {
	if p.retention <= 0 || !p.journal.IsEnabled() {
		p.logger.Debug().Msg("Journal retention disabled")
		return nil
	}

	_, err := p.scheduler.NewJob(
		gocron.DurationJob(pruneInterval),
		gocron.NewTask(func() {
			if _, err := p.PruneNow(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("Journal pruning failed")
			}
		}),
		gocron.WithName("journal-prune"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.New().Wrap(ErrPruneFailed, err)
	}

	p.scheduler.Start()
	p.started = true

	return nil
}

// PruneNow removes everything older than the retention window.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-p.retention)

	n, err := p.journal.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		p.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned journal events")
	}

	return n, nil
}

func (p *Pruner) Stop() error {
	if !p.started {
		return nil
	}
	if err := p.scheduler.Shutdown(); err != nil {
		return errors.New().Wrap(ErrPruneFailed, err)
	}

	return nil
}
