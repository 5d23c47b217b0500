package monitor

import (
	"context"
	"fmt"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/journal"
	"codeberg.org/mutker/yubikill/internal/logger"
	"codeberg.org/mutker/yubikill/internal/notify"
	"codeberg.org/mutker/yubikill/internal/power"
	"codeberg.org/mutker/yubikill/internal/usb"
	"github.com/jonboulle/clockwork"
)

// PresenceOracle reports whether the guarded token is attached. It must not
// fail; an indeterminate answer is reported as absent.
type PresenceOracle interface {
	IsPresent(ctx context.Context, id usb.Identity) bool
}

// Monitor polls the oracle and escalates when the token stays away for the
// whole grace period.
type Monitor struct {
	cfg      Config
	total    int
	oracle   PresenceOracle
	identity usb.Identity
	notifier notify.Notifier
	executor power.Executor
	recorder journal.Recorder
	clock    clockwork.Clock
	logger   logger.Logger
	state    State
}

type Option func(*Monitor)

// WithClock replaces the wall clock driving the poll ticker.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// WithRecorder sends every transition to the event journal.
func WithRecorder(r journal.Recorder) Option {
	return func(m *Monitor) {
		m.recorder = r
	}
}

func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) {
		m.logger = log
	}
}

// New builds a monitor for id. notifier may be nil when cfg.Notify is false.
func New(cfg Config, oracle PresenceOracle, id usb.Identity, notifier notify.Notifier, executor power.Executor, opts ...Option) (*Monitor, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if oracle == nil || executor == nil {
		return nil, errFactory.New(errors.ErrInvalidArgument)
	}
	if cfg.Notify && notifier == nil {
		return nil, errFactory.New(ErrMissingNotifier)
	}
	if cfg.Message == "" {
		cfg.Message = notify.DefaultMessage
	}

	m := &Monitor{
		cfg:      cfg,
		total:    cfg.TotalTicks(),
		oracle:   oracle,
		identity: id,
		notifier: notifier,
		executor: executor,
		recorder: nopRecorder{},
		clock:    clockwork.NewRealClock(),
		logger:   logger.New("monitor"),
		state:    State{Phase: Attached},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Run polls until ctx is cancelled, returning nil, or until the grace period
// expires and the action has been dispatched. After dispatch Run always
// returns an error: ErrActionFailed if the executor failed, ErrActionReturned
// if it succeeded but the host is still running.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	defer m.release()

	m.logger.Info().
		Str("device", m.identity.String()).
		Str("usb_id", m.identity.USBID()).
		Int("grace_seconds", m.cfg.GraceSeconds).
		Str("action", m.cfg.Action.String()).
		Bool("notify", m.cfg.Notify).
		Msg("Watching token")
	m.record(ctx, journal.KindDeviceFound, func(e *journal.Event) {
		e.Action = m.cfg.Action.String()
	})

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Str("phase", m.state.Phase.String()).Msg("Monitor stopped")
			m.record(context.WithoutCancel(ctx), journal.KindStopped, func(e *journal.Event) {
				e.ElapsedTicks = m.state.Elapsed
				e.Detail = m.state.Phase.String()
			})
			return nil
		case <-ticker.Chan():
			if done, err := m.tick(ctx); done {
				return err
			}
		}
	}
}

func (m *Monitor) tick(ctx context.Context) (bool, error) {
	return m.step(ctx, m.oracle.IsPresent(ctx, m.identity))
}

// step applies one presence sample. It reports true once the terminal action
// has been dispatched.
func (m *Monitor) step(ctx context.Context, present bool) (bool, error) {
	switch m.state.Phase {
	case Attached:
		if present {
			return false, nil
		}
		m.enterGrace(ctx)
		return m.absent(ctx)
	case GracePeriod:
		if present {
			m.reinserted(ctx)
			return false, nil
		}
		return m.absent(ctx)
	default:
		return false, nil
	}
}

func (m *Monitor) enterGrace(ctx context.Context) {
	m.state = State{Phase: GracePeriod}

	m.logger.Warn().
		Str("device", m.identity.String()).
		Msg(fmt.Sprintf("Device removed, escalating in %d seconds", m.cfg.GraceSeconds))
	m.record(ctx, journal.KindRemoved, nil)

	if !m.cfg.Notify {
		return
	}

	h, err := m.notifier.Show(ctx, m.cfg.Message)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to show warning, countdown continues")
		m.record(ctx, journal.KindNotifierFailed, func(e *journal.Event) {
			e.Detail = err.Error()
		})
		return
	}
	m.state.Handle = h
}

func (m *Monitor) absent(ctx context.Context) (bool, error) {
	if m.state.Elapsed+1 < m.total {
		m.state.Elapsed++
		return false, nil
	}

	return true, m.expire(ctx)
}

func (m *Monitor) reinserted(ctx context.Context) {
	elapsed := m.state.Elapsed
	m.release()

	m.logger.Warn().
		Str("device", m.identity.String()).
		Int("elapsed_ticks", elapsed).
		Msg("Device reinserted")
	m.record(ctx, journal.KindReinserted, func(e *journal.Event) {
		e.ElapsedTicks = elapsed
	})
}

func (m *Monitor) expire(ctx context.Context) error {
	errFactory := errors.New()
	elapsed := m.state.Elapsed
	action := m.cfg.Action

	m.release()

	// a shutdown signal racing the action must not abort it
	actx := context.WithoutCancel(ctx)

	m.logger.Warn().
		Str("action", action.String()).
		Int("elapsed_ticks", elapsed).
		Msg("Grace period expired, dispatching action")
	m.record(actx, journal.KindActionDispatched, func(e *journal.Event) {
		e.ElapsedTicks = elapsed
		e.Action = action.String()
	})
	if err := m.recorder.Flush(actx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to flush journal before action")
	}

	if err := m.executor.Execute(actx, action); err != nil {
		m.record(actx, journal.KindActionFailed, func(e *journal.Event) {
			e.Action = action.String()
			e.Detail = err.Error()
		})
		if err := m.recorder.Flush(actx); err != nil {
			m.logger.Debug().Err(err).Msg("Failed to flush journal after action failure")
		}
		return errFactory.Wrap(ErrActionFailed, err)
	}

	return errFactory.WithData(ErrActionReturned, action.String())
}

// release dismisses any live warning and returns to Attached.
func (m *Monitor) release() {
	if m.state.Handle != nil {
		if err := m.notifier.Dismiss(m.state.Handle); err != nil {
			m.logger.Warn().Err(err).Str("handle", m.state.Handle.String()).Msg("Failed to dismiss warning")
		}
	}
	m.state = State{Phase: Attached}
}

func (m *Monitor) record(ctx context.Context, kind journal.Kind, fill func(*journal.Event)) {
	e := journal.NewEvent(kind)
	e.Timestamp = m.clock.Now()
	e.Device = m.identity.String() + " " + m.identity.USBID()
	e.Serial = m.identity.Serial
	e.GraceSeconds = m.cfg.GraceSeconds
	if fill != nil {
		fill(e)
	}

	if err := m.recorder.Record(ctx, e); err != nil {
		m.logger.Debug().Err(err).Str("kind", string(kind)).Msg("Failed to record event")
	}
}

type nopRecorder struct{}

func (nopRecorder) Record(_ context.Context, _ *journal.Event) error { return nil }

func (nopRecorder) Flush(_ context.Context) error { return nil }
