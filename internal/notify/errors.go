package notify

import "codeberg.org/mutker/yubikill/internal/errors"

const (
	ErrInvalidCommand = errors.ErrorCode("notify_invalid_command")
	ErrShowFailed     = errors.ErrorCode("notify_show_failed")
	ErrDismissFailed  = errors.ErrorCode("notify_dismiss_failed")
	ErrInvalidHandle  = errors.ErrorCode("notify_invalid_handle")
	ErrBusUnavailable = errors.ErrorCode("notify_bus_unavailable")
	ErrUnknownBackend = errors.ErrInvalidBackend
)
