package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/yubikill/internal/config"
	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
	"codeberg.org/mutker/yubikill/internal/notify"
	"codeberg.org/mutker/yubikill/internal/power"
	"codeberg.org/mutker/yubikill/internal/usb"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))

	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "yubikill.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func load(t *testing.T, fs *pflag.FlagSet, opts ...config.Option) (*config.Config, error) {
	t.Helper()
	t.Setenv("YUBIKILL_CONFIG", "")

	return config.Load(fs, append([]config.Option{config.WithSearchPaths(), config.WithLegacyFile("")}, opts...)...)
}

func writeLegacy(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".yubikill")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, flags(t))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Delay, "Expected default Delay 0")
	assert.Equal(t, "shutdown", cfg.Action, "Expected default Action shutdown")
	assert.False(t, cfg.Notify, "Expected default Notify false")
	assert.Equal(t, "1050", cfg.Device.Vendor)
	assert.Equal(t, notify.BackendNagbar, cfg.Notifier.Backend)
	assert.Equal(t, notify.DefaultNagbarCommand, cfg.Notifier.Command)
	assert.Equal(t, notify.DefaultMessage, cfg.Notifier.Message)
	assert.Equal(t, power.BackendCommand, cfg.Executor.Backend)
	assert.Equal(t, power.DefaultShutdownCommand, cfg.Executor.ShutdownCommand)
	assert.Equal(t, power.DefaultHibernateCommand, cfg.Executor.HibernateCommand)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, string(config.DefaultLogLevel), cfg.LogLevel)
	assert.Empty(t, cfg.File)
}

func TestLoadWithoutFlags(t *testing.T) {
	cfg, err := load(t, nil)
	require.NoError(t, err)
	assert.Equal(t, "shutdown", cfg.Action)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
delay = 5
action = "hibernate"
i3 = true
log_level = "info"

[device]
product = "0407"
serial = "12345678"

[notifier]
message = "token gone"

[journal]
enabled = true
path = "/tmp/yubikill/events.db"
retention_days = 7
`)

	cfg, err := load(t, flags(t), config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 5, cfg.Delay)
	assert.Equal(t, "hibernate", cfg.Action)
	assert.True(t, cfg.Notify, "i3 is read as notify")
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0407", cfg.Device.Product)
	assert.Equal(t, "12345678", cfg.Device.Serial)
	assert.Equal(t, "token gone", cfg.Notifier.Message)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "/tmp/yubikill/events.db", cfg.Journal.Path)
	assert.Equal(t, 7, cfg.Journal.RetentionDays)
}

func TestNotifyKeyWinsOverI3(t *testing.T) {
	path := writeConfig(t, "i3 = true\nnotify = false\n")

	cfg, err := load(t, flags(t), config.WithConfigFile(path))
	require.NoError(t, err)
	assert.False(t, cfg.Notify)
}

func TestConfigFlagSelectsFile(t *testing.T) {
	path := writeConfig(t, "delay = 9\n")

	cfg, err := load(t, flags(t, "-c", path))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Delay)
}

func TestSearchPathsInOrder(t *testing.T) {
	dir := t.TempDir()
	second := filepath.Join(dir, "second.toml")
	require.NoError(t, os.WriteFile(second, []byte("delay = 3\n"), 0o600))

	cfg, err := load(t, flags(t), config.WithSearchPaths(filepath.Join(dir, "missing.toml"), second))
	require.NoError(t, err)
	assert.Equal(t, second, cfg.File)
	assert.Equal(t, 3, cfg.Delay)
}

func TestFlagsOverrideFileAndEnv(t *testing.T) {
	path := writeConfig(t, "delay = 5\naction = \"hibernate\"\n")
	t.Setenv("YUBIKILL_DELAY", "7")

	cfg, err := load(t, flags(t, "-d", "2", "-p", "-i"), config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Delay)
	assert.Equal(t, "shutdown", cfg.Action)
	assert.True(t, cfg.Notify)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "delay = 5\n")
	t.Setenv("YUBIKILL_DELAY", "7")
	t.Setenv("YUBIKILL_NOTIFIER_BACKEND", "desktop")

	cfg, err := load(t, flags(t), config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Delay)
	assert.Equal(t, notify.BackendDesktop, cfg.Notifier.Backend)
}

func TestEnvPrefix(t *testing.T) {
	t.Setenv("YKTEST_DELAY", "4")
	t.Setenv("YUBIKILL_DELAY", "7")

	cfg, err := load(t, flags(t), config.WithEnvPrefix("YKTEST"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Delay)
}

func TestLegacyFile(t *testing.T) {
	path := writeLegacy(t, "# token watchdog\ndelay 3\n\ni3   1\naction\thibernate\n")

	cfg, err := load(t, flags(t), config.WithLegacyFile(path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 3, cfg.Delay)
	assert.True(t, cfg.Notify)
	assert.Equal(t, "hibernate", cfg.Action)
}

func TestLegacyFileFlagsWin(t *testing.T) {
	path := writeLegacy(t, "delay 3\ni3 0\n")

	cfg, err := load(t, flags(t, "-d", "1", "-i"), config.WithLegacyFile(path))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Delay)
	assert.True(t, cfg.Notify)
}

func TestLegacyFileIgnoredWithTOML(t *testing.T) {
	legacy := writeLegacy(t, "delay 3\n")
	path := writeConfig(t, "delay = 5\n")

	cfg, err := load(t, flags(t), config.WithConfigFile(path), config.WithLegacyFile(legacy))
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 5, cfg.Delay)
}

func TestLegacyFileMissing(t *testing.T) {
	cfg, err := load(t, flags(t), config.WithLegacyFile(filepath.Join(t.TempDir(), ".yubikill")))
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
}

func TestLegacyFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{"unknown key", "reboot 1\n", errors.ErrReadConfig},
		{"missing value", "delay\n", errors.ErrReadConfig},
		{"extra field", "delay 3 4\n", errors.ErrReadConfig},
		{"bad i3", "i3 yes\n", errors.ErrReadConfig},
		{"bad delay", "delay soon\n", errors.ErrInvalidDelay},
		{"negative delay", "delay -2\n", errors.ErrInvalidDelay},
		{"bad action", "action reboot\n", errors.ErrInvalidAction},
		{"alias not accepted", "action poweroff\n", errors.ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, flags(t), config.WithLegacyFile(writeLegacy(t, tt.content)))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestSwitches(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		action   string
		executor string
		level    string
	}{
		{"hibernate", []string{"--hibernate"}, "hibernate", power.BackendCommand, "warning"},
		{"dry run", []string{"--dry-run"}, "shutdown", power.BackendDryRun, "warning"},
		{"logind", []string{"--executor", "logind"}, "shutdown", power.BackendLogind, "warning"},
		{"debug", []string{"--debug"}, "shutdown", power.BackendCommand, "debug"},
		{"verbose", []string{"--verbose"}, "shutdown", power.BackendCommand, "info"},
		{"explicit level wins", []string{"--debug", "--log-level", "error"}, "shutdown", power.BackendCommand, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(t, flags(t, tt.args...))
			require.NoError(t, err)

			assert.Equal(t, tt.action, cfg.Action)
			assert.Equal(t, tt.executor, cfg.Executor.Backend)
			assert.Equal(t, tt.level, cfg.LogLevel)
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		file string
		code errors.ErrorCode
	}{
		{"negative delay", []string{"--delay", "-1"}, "", errors.ErrInvalidDelay},
		{"delay overflows tick count", []string{"--delay", "4611686018427387904"}, "", errors.ErrInvalidDelay},
		{"bad vendor", []string{"--vendor", "zz"}, "", errors.ErrInvalidVendorID},
		{"zero vendor", []string{"--vendor", "0"}, "", errors.ErrInvalidVendorID},
		{"bad product", []string{"--product", "xyz"}, "", errors.ErrInvalidArgument},
		{"unknown notifier", []string{"--notifier", "dialog"}, "", errors.ErrInvalidBackend},
		{"unknown executor", []string{"--executor", "acpi"}, "", errors.ErrInvalidBackend},
		{"unknown log level", []string{"--log-level", "trace"}, "", errors.ErrInvalidLogLevel},
		{"unknown action", nil, "action = \"reboot\"\n", errors.ErrInvalidAction},
		{"malformed file", nil, "delay = [\n", errors.ErrReadConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []config.Option
			if tt.file != "" {
				opts = append(opts, config.WithConfigFile(writeConfig(t, tt.file)))
			}

			_, err := load(t, flags(t, tt.args...), opts...)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := load(t, flags(t), config.WithConfigFile(filepath.Join(t.TempDir(), "nope.toml")))
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestConversions(t *testing.T) {
	cfg, err := load(t, flags(t,
		"-d", "2", "--hibernate", "-i",
		"--product", "0x0407", "--serial", "12345678",
		"--journal", "--journal-db", "/tmp/events.db",
		"--verbose",
	))
	require.NoError(t, err)

	mc := cfg.MonitorConfig()
	assert.Equal(t, 2, mc.GraceSeconds)
	assert.Equal(t, 8, mc.TotalTicks())
	assert.True(t, mc.Notify)
	assert.Equal(t, power.Hibernate, mc.Action)
	assert.Equal(t, notify.DefaultMessage, mc.Message)
	assert.NoError(t, mc.Validate())

	m, err := cfg.Matcher()
	require.NoError(t, err)
	assert.Equal(t, usb.Matcher{VendorID: usb.YubicoVendorID, ProductID: 0x0407, Serial: "12345678"}, m)

	jc := cfg.JournalConfig()
	assert.True(t, jc.Enabled)
	assert.Equal(t, "/tmp/events.db", jc.DBPath)

	assert.Equal(t, power.BackendCommand, cfg.PowerConfig().Backend)
	assert.Equal(t, notify.BackendNagbar, cfg.NotifyConfig().Backend)
	assert.Equal(t, logger.InfoLevel, cfg.Level())
}

func TestLogLevelIsValid(t *testing.T) {
	assert.True(t, config.LogLevelWarning.IsValid())
	assert.False(t, config.LogLevel("verbose").IsValid())
}
