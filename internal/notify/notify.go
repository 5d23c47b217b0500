package notify

import (
	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
)

type Config struct {
	Backend string
	Command string
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendNagbar,
		Command: DefaultNagbarCommand,
	}
}

// New builds the notifier for the configured backend.
func New(cfg Config, log logger.Logger) (Notifier, error) {
	switch cfg.Backend {
	case BackendNagbar, "":
		return NewNagbarNotifier(cfg.Command, log)
	case BackendDesktop:
		return NewDesktopNotifier(log)
	default:
		return nil, errors.New().WithData(ErrUnknownBackend, cfg.Backend)
	}
}
