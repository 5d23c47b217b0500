package journal

import (
	"os"
	"path/filepath"

	"codeberg.org/mutker/yubikill/internal/errors"
)

const (
	defaultDirPerm       = 0o700
	defaultBatchSize     = 16
	defaultFlushInterval = 5
	defaultRetentionDays = 90
	dbFileName           = "events.db"
)

type Config struct {
	Enabled       bool
	DBPath        string
	BatchSize     int
	FlushInterval int // seconds
	RetentionDays int // 0 keeps everything
}

func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		DBPath:        DefaultDBPath(),
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
		RetentionDays: defaultRetentionDays,
	}
}

// DefaultDBPath follows the XDG state directory of the invoking user.
func DefaultDBPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "yubikill", dbFileName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "yubikill", dbFileName)
	}

	return filepath.Join("/var/lib/yubikill", dbFileName)
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.FlushInterval < 0 || c.RetentionDays < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize     int
			FlushInterval int
			RetentionDays int
		}{c.BatchSize, c.FlushInterval, c.RetentionDays})
	}

	return nil
}
