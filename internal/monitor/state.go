package monitor

import "codeberg.org/mutker/yubikill/internal/notify"

type Phase int

const (
	Attached Phase = iota
	GracePeriod
)

func (p Phase) String() string {
	switch p {
	case Attached:
		return "attached"
	case GracePeriod:
		return "grace_period"
	default:
		return "unknown"
	}
}

// State is owned by the goroutine running the monitor. Elapsed and Handle
// are only meaningful in GracePeriod.
type State struct {
	Phase   Phase
	Elapsed int
	Handle  notify.Handle
}
