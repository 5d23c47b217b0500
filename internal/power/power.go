package power

import (
	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
)

type Config struct {
	Backend          string
	ShutdownCommand  string
	HibernateCommand string
}

func DefaultConfig() Config {
	return Config{
		Backend:          BackendCommand,
		ShutdownCommand:  DefaultShutdownCommand,
		HibernateCommand: DefaultHibernateCommand,
	}
}

// New builds the executor for the configured backend.
func New(cfg Config, log logger.Logger) (Executor, error) {
	switch cfg.Backend {
	case BackendCommand, "":
		return NewCommandExecutor(cfg.ShutdownCommand, cfg.HibernateCommand, log)
	case BackendLogind:
		return NewLogindExecutor(log)
	case BackendDryRun:
		return NewDryRunExecutor(log), nil
	default:
		return nil, errors.New().WithData(ErrUnknownBackend, cfg.Backend)
	}
}
