package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

type noopJournal struct{}

// NewService opens the journal, or returns a no-op journal when disabled.
func NewService(cfg Config, log logger.Logger) (Journal, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Event journal disabled, using no-op journal")
		return &noopJournal{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) Record(ctx context.Context, event *Event) error {
	errFactory := errors.New()

	if event == nil || event.Kind == "" {
		return errFactory.New(ErrInvalidEvent)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		return s.repo.Record(event)
	}
}

func (s *service) Flush(_ context.Context) error {
	return s.repo.Flush()
}

func (s *service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	return s.repo.Recent(ctx, limit)
}

func (s *service) Prune(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Prune(ctx, before)
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (*service) IsEnabled() bool {
	return true
}

func (*noopJournal) Record(_ context.Context, _ *Event) error {
	return nil
}

func (*noopJournal) Flush(_ context.Context) error {
	return nil
}

func (*noopJournal) Recent(_ context.Context, _ int) ([]Event, error) {
	return nil, nil
}

func (*noopJournal) Prune(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (*noopJournal) Close() error {
	return nil
}

func (*noopJournal) IsEnabled() bool {
	return false
}
