package usb

import "codeberg.org/mutker/yubikill/internal/errors"

const (
	ErrDeviceNotFound  = errors.ErrorCode("usb_device_not_found")
	ErrEnumerateFailed = errors.ErrorCode("usb_enumerate_failed")
)
