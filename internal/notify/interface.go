package notify

import "context"

// DefaultMessage is shown when the token disappears.
const DefaultMessage = "WARNING - yubikey was removed"

// Notifier displays an advisory warning while the grace period runs.
// Show must not wait for the indicator to appear; Dismiss must not wait for
// it to go away, and must tolerate an indicator that already ended.
type Notifier interface {
	Show(ctx context.Context, message string) (Handle, error)
	Dismiss(h Handle) error
}

// Handle identifies one displayed warning.
type Handle interface {
	String() string
}

// Backend names accepted by New.
const (
	BackendNagbar  = "nagbar"
	BackendDesktop = "desktop"
)
