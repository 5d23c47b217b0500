package power

import "codeberg.org/mutker/yubikill/internal/errors"

const (
	ErrInvalidAction  = errors.ErrInvalidAction
	ErrInvalidCommand = errors.ErrorCode("power_invalid_command")
	ErrActionFailed   = errors.ErrorCode("power_action_failed")
	ErrBusUnavailable = errors.ErrorCode("power_bus_unavailable")
	ErrUnknownBackend = errors.ErrInvalidBackend
)
