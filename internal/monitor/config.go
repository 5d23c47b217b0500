package monitor

import (
	"math"
	"time"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/notify"
	"codeberg.org/mutker/yubikill/internal/power"
)

// DefaultPollInterval is the presence sampling period.
const DefaultPollInterval = 250 * time.Millisecond

type Config struct {
	PollInterval time.Duration
	GraceSeconds int
	Notify       bool
	Action       power.Action
	Message      string
}

func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		GraceSeconds: 0,
		Notify:       false,
		Action:       power.Shutdown,
		Message:      notify.DefaultMessage,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.GraceSeconds < 0 {
		return errFactory.WithData(errors.ErrInvalidDelay, c.GraceSeconds)
	}
	// a poll interval above one second would round the tick rate down to zero
	if c.PollInterval <= 0 || c.PollInterval > time.Second {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PollInterval.String())
	}
	if c.GraceSeconds > math.MaxInt/c.TicksPerSecond() {
		return errFactory.WithData(errors.ErrInvalidDelay, c.GraceSeconds)
	}
	if c.Action != power.Shutdown && c.Action != power.Hibernate {
		return errFactory.WithData(errors.ErrInvalidAction, int(c.Action))
	}

	return nil
}

// TicksPerSecond is the number of polls in one second of grace.
func (c Config) TicksPerSecond() int {
	return int(time.Second / c.PollInterval)
}

// TotalTicks is the length of the grace period in polls.
func (c Config) TotalTicks() int {
	return c.GraceSeconds * c.TicksPerSecond()
}
