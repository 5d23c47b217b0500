package power

import (
	"context"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	logindDest    = "org.freedesktop.login1"
	logindPath    = dbus.ObjectPath("/org/freedesktop/login1")
	logindManager = "org.freedesktop.login1.Manager"
)

// busObject is the subset of dbus.BusObject the executor calls.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// LogindExecutor asks systemd-logind over the system bus.
type LogindExecutor struct {
	conn   *dbus.Conn
	obj    busObject
	logger logger.Logger
}

func NewLogindExecutor(log logger.Logger) (*LogindExecutor, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.New().Wrap(ErrBusUnavailable, err)
	}

	return &LogindExecutor{
		conn:   conn,
		obj:    conn.Object(logindDest, logindPath),
		logger: log,
	}, nil
}

func (e *LogindExecutor) Execute(ctx context.Context, action Action) error {
	errFactory := errors.New()

	var method string
	switch action {
	case Shutdown:
		method = logindManager + ".PowerOff"
	case Hibernate:
		method = logindManager + ".Hibernate"
	default:
		return errFactory.WithData(ErrInvalidAction, action.String())
	}

	e.logger.Warn().
		Str("action", action.String()).
		Str("method", method).
		Msg("Requesting terminal action from logind")

	// interactive=false: no polkit prompt, fail instead
	if call := e.obj.CallWithContext(ctx, method, 0, false); call.Err != nil {
		return errFactory.Wrap(ErrActionFailed, call.Err).WithData(struct {
			Action string
			Method string
			Error  string
		}{
			Action: action.String(),
			Method: method,
			Error:  call.Err.Error(),
		})
	}

	return nil
}

func (e *LogindExecutor) Close() error {
	if e.conn == nil {
		return nil
	}

	return e.conn.Close()
}
