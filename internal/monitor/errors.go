package monitor

import "codeberg.org/mutker/yubikill/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrMissingNotifier = errors.ErrorCode("monitor_missing_notifier")
	ErrActionFailed    = errors.ErrorCode("monitor_action_failed")
	ErrActionReturned  = errors.ErrorCode("monitor_action_returned")
)
