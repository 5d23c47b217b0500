package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsIface = "org.freedesktop.Notifications"

	appName         = "yubikill"
	urgencyCritical = byte(2)
	replyTimeout    = 5 * time.Second
)

type busObject interface {
	Go(method string, flags dbus.Flags, ch chan *dbus.Call, args ...interface{}) *dbus.Call
}

// DesktopNotifier posts a critical freedesktop notification on the
// session bus.
type DesktopNotifier struct {
	conn   *dbus.Conn
	obj    busObject
	logger logger.Logger

	// dismissals still waiting for a Notify reply
	pending sync.WaitGroup
}

func NewDesktopNotifier(log logger.Logger) (*DesktopNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.New().Wrap(ErrBusUnavailable, err)
	}

	return &DesktopNotifier{
		conn:   conn,
		obj:    conn.Object(notificationsDest, notificationsPath),
		logger: log,
	}, nil
}

type notification struct {
	ready chan struct{}
	id    uint32
	err   error
}

func (n *notification) String() string {
	select {
	case <-n.ready:
		if n.err == nil {
			return "notification:" + strconv.FormatUint(uint64(n.id), 10)
		}
		return "notification:failed"
	default:
		return "notification:pending"
	}
}

// Show sends Notify without waiting for the reply that carries the
// notification id.
func (d *DesktopNotifier) Show(_ context.Context, message string) (Handle, error) {
	call := d.obj.Go(notificationsIface+".Notify", 0, make(chan *dbus.Call, 1),
		appName,
		uint32(0),
		"dialog-warning",
		"Security token removed",
		message,
		[]string{},
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgencyCritical)},
		int32(0),
	)
	if call.Err != nil {
		return nil, errors.New().Wrap(ErrShowFailed, call.Err)
	}

	n := &notification{ready: make(chan struct{})}
	go func() {
		defer close(n.ready)
		select {
		case reply := <-call.Done:
			if reply.Err != nil {
				n.err = reply.Err
				return
			}
			n.err = reply.Store(&n.id)
		case <-time.After(replyTimeout):
			n.err = errors.New().New(errors.ErrTimeout)
		}
	}()

	return n, nil
}

// Dismiss closes the notification in the background once its id is known.
func (d *DesktopNotifier) Dismiss(h Handle) error {
	n, ok := h.(*notification)
	if !ok || n == nil {
		return errors.New().New(ErrInvalidHandle)
	}

	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		<-n.ready
		if n.err != nil {
			d.logger.Warn().Err(n.err).Msg("Notification was never shown, nothing to close")
			return
		}

		d.obj.Go(notificationsIface+".CloseNotification", dbus.FlagNoReplyExpected, nil, n.id)
		d.logger.Debug().Uint32("id", n.id).Msg("Notification closed")
	}()

	return nil
}

// Close waits up to replyTimeout for queued dismissals before dropping the
// bus connection.
func (d *DesktopNotifier) Close() error {
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(replyTimeout):
		d.logger.Warn().Msg("Timed out waiting for notification to close")
	}

	if d.conn == nil {
		return nil
	}

	return d.conn.Close()
}
