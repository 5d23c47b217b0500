package monitor

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/journal"
	"codeberg.org/mutker/yubikill/internal/notify"
	"codeberg.org/mutker/yubikill/internal/power"
	"codeberg.org/mutker/yubikill/internal/usb"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var token = usb.Identity{Bus: 3, Address: 7, VendorID: usb.YubicoVendorID, ProductID: 0x0407, Serial: "12345678"}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type scriptedOracle struct {
	mu      sync.Mutex
	samples []bool
	last    bool
}

func (o *scriptedOracle) IsPresent(_ context.Context, _ usb.Identity) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.samples) == 0 {
		return o.last
	}
	o.last = o.samples[0]
	o.samples = o.samples[1:]
	return o.last
}

type handle int

func (h handle) String() string { return fmt.Sprintf("warning-%d", int(h)) }

type fakeNotifier struct {
	log       *callLog
	showErr   error
	next      int
	shown     chan struct{}
	dismissed chan struct{}
}

func newFakeNotifier(log *callLog) *fakeNotifier {
	return &fakeNotifier{
		log:       log,
		shown:     make(chan struct{}, 16),
		dismissed: make(chan struct{}, 16),
	}
}

func (n *fakeNotifier) Show(_ context.Context, msg string) (notify.Handle, error) {
	n.log.add("show:" + msg)
	defer func() { n.shown <- struct{}{} }()
	if n.showErr != nil {
		return nil, n.showErr
	}
	n.next++
	return handle(n.next), nil
}

func (n *fakeNotifier) Dismiss(h notify.Handle) error {
	n.log.add("dismiss:" + h.String())
	n.dismissed <- struct{}{}
	return nil
}

type fakeExecutor struct {
	log      *callLog
	err      error
	executed chan power.Action
}

func newFakeExecutor(log *callLog) *fakeExecutor {
	return &fakeExecutor{log: log, executed: make(chan power.Action, 1)}
}

func (e *fakeExecutor) Execute(_ context.Context, action power.Action) error {
	e.log.add("execute:" + action.String())
	e.executed <- action
	return e.err
}

type fakeRecorder struct {
	log   *callLog
	mu    sync.Mutex
	kinds []journal.Kind
}

func (r *fakeRecorder) Record(_ context.Context, e *journal.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, e.Kind)
	return nil
}

func (r *fakeRecorder) Flush(_ context.Context) error {
	r.log.add("flush")
	return nil
}

func (r *fakeRecorder) recorded() []journal.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.Kind(nil), r.kinds...)
}

type fixture struct {
	log      *callLog
	notifier *fakeNotifier
	executor *fakeExecutor
	recorder *fakeRecorder
	monitor  *Monitor
}

func newFixture(t *testing.T, cfg Config, oracle PresenceOracle, opts ...Option) *fixture {
	t.Helper()

	log := &callLog{}
	f := &fixture{
		log:      log,
		notifier: newFakeNotifier(log),
		executor: newFakeExecutor(log),
		recorder: &fakeRecorder{log: log},
	}
	if oracle == nil {
		oracle = &scriptedOracle{last: true}
	}

	opts = append([]Option{WithRecorder(f.recorder)}, opts...)
	m, err := New(cfg, oracle, token, f.notifier, f.executor, opts...)
	require.NoError(t, err)
	f.monitor = m

	return f
}

func config(grace int, notifyOn bool, action power.Action) Config {
	cfg := DefaultConfig()
	cfg.GraceSeconds = grace
	cfg.Notify = notifyOn
	cfg.Action = action
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		code errors.ErrorCode
	}{
		{"defaults", DefaultConfig(), ""},
		{"negative grace", Config{PollInterval: DefaultPollInterval, GraceSeconds: -1}, errors.ErrInvalidDelay},
		{"grace overflows tick count", Config{PollInterval: DefaultPollInterval, GraceSeconds: 1 << 62}, errors.ErrInvalidDelay},
		{"largest grace", Config{PollInterval: DefaultPollInterval, GraceSeconds: math.MaxInt / 4}, ""},
		{"zero interval", Config{GraceSeconds: 2}, errors.ErrInvalidInterval},
		{"interval above one second", Config{PollInterval: 2 * time.Second}, errors.ErrInvalidInterval},
		{"unknown action", Config{PollInterval: DefaultPollInterval, Action: power.Action(7)}, errors.ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestTotalTicks(t *testing.T) {
	cfg := config(2, false, power.Shutdown)
	assert.Equal(t, 4, cfg.TicksPerSecond())
	assert.Equal(t, 8, cfg.TotalTicks())

	cfg.GraceSeconds = 0
	assert.Equal(t, 0, cfg.TotalTicks())
}

func TestNewRequiresNotifierWhenNotifying(t *testing.T) {
	_, err := New(config(2, true, power.Shutdown), &scriptedOracle{}, token, nil, newFakeExecutor(&callLog{}))
	assert.True(t, errors.HasCode(err, ErrMissingNotifier))

	_, err = New(config(2, false, power.Shutdown), &scriptedOracle{}, token, nil, newFakeExecutor(&callLog{}))
	assert.NoError(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	for _, grace := range []int{-1, 1 << 62} {
		_, err := New(config(grace, false, power.Shutdown), &scriptedOracle{}, token, nil, newFakeExecutor(&callLog{}))
		assert.True(t, errors.HasCode(err, ErrInvalidConfig), "grace %d", grace)
		assert.True(t, errors.HasCode(err, errors.ErrInvalidDelay), "grace %d", grace)
	}
}

func TestPresentTokenNeverEscalates(t *testing.T) {
	f := newFixture(t, config(0, true, power.Shutdown), nil)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		done, err := f.monitor.step(ctx, true)
		require.NoError(t, err)
		require.False(t, done)
	}

	assert.Empty(t, f.log.list())
	assert.Equal(t, Attached, f.monitor.state.Phase)
}

func TestReinsertedBeforeExpiry(t *testing.T) {
	f := newFixture(t, config(2, true, power.Shutdown), nil)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		done, err := f.monitor.step(ctx, false)
		require.NoError(t, err)
		require.False(t, done, "tick %d", i)
		assert.Equal(t, GracePeriod, f.monitor.state.Phase)
		assert.Equal(t, i, f.monitor.state.Elapsed)
	}

	done, err := f.monitor.step(ctx, true)
	require.NoError(t, err)
	assert.False(t, done)

	assert.Equal(t, State{Phase: Attached}, f.monitor.state)
	assert.Equal(t, []string{
		"show:" + notify.DefaultMessage,
		"dismiss:warning-1",
	}, f.log.list())
	assert.Equal(t, []journal.Kind{journal.KindRemoved, journal.KindReinserted}, f.recorder.recorded())
}

func TestExpiryDismissesThenExecutes(t *testing.T) {
	f := newFixture(t, config(2, true, power.Hibernate), nil)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		done, err := f.monitor.step(ctx, false)
		require.NoError(t, err)
		require.False(t, done, "tick %d", i)
	}

	done, err := f.monitor.step(ctx, false)
	assert.True(t, done)
	assert.True(t, errors.HasCode(err, ErrActionReturned))

	assert.Equal(t, []string{
		"show:" + notify.DefaultMessage,
		"dismiss:warning-1",
		"flush",
		"execute:hibernate",
	}, f.log.list())
	assert.Equal(t, []journal.Kind{journal.KindRemoved, journal.KindActionDispatched}, f.recorder.recorded())
	assert.Nil(t, f.monitor.state.Handle)
}

func TestZeroGraceExpiresOnFirstAbsence(t *testing.T) {
	tests := []struct {
		name   string
		notify bool
		want   []string
	}{
		{
			name:   "with warning",
			notify: true,
			want:   []string{"show:" + notify.DefaultMessage, "dismiss:warning-1", "flush", "execute:shutdown"},
		},
		{
			name:   "without warning",
			notify: false,
			want:   []string{"flush", "execute:shutdown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config(0, tt.notify, power.Shutdown), nil)

			done, err := f.monitor.step(context.Background(), false)
			assert.True(t, done)
			assert.True(t, errors.HasCode(err, ErrActionReturned))
			assert.Equal(t, tt.want, f.log.list())
		})
	}
}

func TestExecutorFailure(t *testing.T) {
	f := newFixture(t, config(0, false, power.Shutdown), nil)
	f.executor.err = io.ErrClosedPipe

	done, err := f.monitor.step(context.Background(), false)
	assert.True(t, done)
	assert.True(t, errors.HasCode(err, ErrActionFailed))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t,
		[]journal.Kind{journal.KindRemoved, journal.KindActionDispatched, journal.KindActionFailed},
		f.recorder.recorded())
}

func TestNotifierFailureDoesNotStopCountdown(t *testing.T) {
	f := newFixture(t, config(1, true, power.Shutdown), nil)
	f.notifier.showErr = io.ErrUnexpectedEOF
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		done, err := f.monitor.step(ctx, false)
		require.NoError(t, err)
		require.False(t, done)
	}
	assert.Nil(t, f.monitor.state.Handle)

	done, err := f.monitor.step(ctx, false)
	assert.True(t, done)
	assert.True(t, errors.HasCode(err, ErrActionReturned))
	assert.Equal(t, []string{"show:" + notify.DefaultMessage, "flush", "execute:shutdown"}, f.log.list())
	assert.Contains(t, f.recorder.recorded(), journal.KindNotifierFailed)
}

func TestRemovalRestartsCountdown(t *testing.T) {
	f := newFixture(t, config(1, true, power.Shutdown), nil)
	ctx := context.Background()

	for _, present := range []bool{false, false, false, true, false} {
		done, err := f.monitor.step(ctx, present)
		require.NoError(t, err)
		require.False(t, done)
	}

	assert.Equal(t, GracePeriod, f.monitor.state.Phase)
	assert.Equal(t, 1, f.monitor.state.Elapsed)
	assert.Equal(t, handle(2), f.monitor.state.Handle)
}

func TestCustomMessage(t *testing.T) {
	cfg := config(1, true, power.Shutdown)
	cfg.Message = "token gone"
	f := newFixture(t, cfg, nil)

	_, err := f.monitor.step(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"show:token gone"}, f.log.list())
}

func startRun(ctx context.Context, m *Monitor) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- m.Run(ctx)
	}()
	return result
}

func TestRunDispatchesOnFirstAbsentTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	oracle := &scriptedOracle{samples: []bool{false}}
	f := newFixture(t, config(0, false, power.Hibernate), oracle, WithClock(clock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := startRun(ctx, f.monitor)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(DefaultPollInterval)

	select {
	case action := <-f.executor.executed:
		assert.Equal(t, power.Hibernate, action)
	case <-ctx.Done():
		t.Fatal("action was not dispatched")
	}

	err := <-result
	assert.True(t, errors.HasCode(err, ErrActionReturned))
	assert.Equal(t, journal.KindDeviceFound, f.recorder.recorded()[0])
}

func TestRunReinsertionDismissesWarning(t *testing.T) {
	clock := clockwork.NewFakeClock()
	oracle := &scriptedOracle{samples: []bool{false, true}}
	f := newFixture(t, config(5, true, power.Shutdown), oracle, WithClock(clock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runCtx, stop := context.WithCancel(ctx)
	result := startRun(runCtx, f.monitor)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(DefaultPollInterval)
	<-f.notifier.shown
	clock.Advance(DefaultPollInterval)

	select {
	case <-f.notifier.dismissed:
	case <-ctx.Done():
		t.Fatal("warning was not dismissed")
	}

	stop()
	assert.NoError(t, <-result)
	assert.Empty(t, f.executor.executed)
}

func TestRunCancellationDismissesLiveWarning(t *testing.T) {
	clock := clockwork.NewFakeClock()
	oracle := &scriptedOracle{last: false}
	f := newFixture(t, config(10, true, power.Shutdown), oracle, WithClock(clock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runCtx, stop := context.WithCancel(ctx)
	result := startRun(runCtx, f.monitor)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(DefaultPollInterval)
	<-f.notifier.shown

	stop()
	require.NoError(t, <-result)

	assert.Equal(t, []string{"show:" + notify.DefaultMessage, "dismiss:warning-1"}, f.log.list())
	assert.Contains(t, f.recorder.recorded(), journal.KindStopped)
	assert.Empty(t, f.executor.executed)
}
