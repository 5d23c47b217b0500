package power

import (
	"context"
	"strings"

	"codeberg.org/mutker/yubikill/internal/errors"
)

// Action is the terminal power operation taken when the token stays away.
type Action int

const (
	Shutdown Action = iota
	Hibernate
)

func (a Action) String() string {
	switch a {
	case Shutdown:
		return "shutdown"
	case Hibernate:
		return "hibernate"
	default:
		return "unknown"
	}
}

// ParseAction accepts the configured action name. "poweroff" is an alias
// of shutdown.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "shutdown", "poweroff":
		return Shutdown, nil
	case "hibernate":
		return Hibernate, nil
	default:
		return Shutdown, errors.New().WithData(ErrInvalidAction, name)
	}
}

// Executor performs a terminal action. A nil return means the request was
// accepted; the host may still be running when it returns.
type Executor interface {
	Execute(ctx context.Context, action Action) error
}

// Backend names accepted by New.
const (
	BackendCommand = "command"
	BackendLogind  = "logind"
	BackendDryRun  = "dry-run"
)
