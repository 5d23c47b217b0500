package config

import (
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/journal"
	"codeberg.org/mutker/yubikill/internal/logger"
	"codeberg.org/mutker/yubikill/internal/monitor"
	"codeberg.org/mutker/yubikill/internal/notify"
	"codeberg.org/mutker/yubikill/internal/pid"
	"codeberg.org/mutker/yubikill/internal/power"
	"codeberg.org/mutker/yubikill/internal/usb"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "YUBIKILL"
	DefaultLogLevel  = LogLevelWarning
	configName       = "yubikill.toml"
)

type Config struct {
	Delay    int            `mapstructure:"delay" toml:"delay"`
	Action   string         `mapstructure:"action" toml:"action"`
	Notify   bool           `mapstructure:"notify" toml:"notify"`
	LogLevel string         `mapstructure:"log_level" toml:"log_level"`
	PIDFile  string         `mapstructure:"pid_file" toml:"pid_file"`
	Device   DeviceConfig   `mapstructure:"device" toml:"device"`
	Notifier NotifierConfig `mapstructure:"notifier" toml:"notifier"`
	Executor ExecutorConfig `mapstructure:"executor" toml:"executor"`
	Journal  JournalConfig  `mapstructure:"journal" toml:"journal"`

	// File is the configuration file that was read, empty if none
	File string `mapstructure:"-" toml:"-"`
}

type DeviceConfig struct {
	Vendor  string `mapstructure:"vendor" toml:"vendor"`
	Product string `mapstructure:"product" toml:"product"`
	Serial  string `mapstructure:"serial" toml:"serial"`
}

type NotifierConfig struct {
	Backend string `mapstructure:"backend" toml:"backend"`
	Command string `mapstructure:"command" toml:"command"`
	Message string `mapstructure:"message" toml:"message"`
}

type ExecutorConfig struct {
	Backend          string `mapstructure:"backend" toml:"backend"`
	ShutdownCommand  string `mapstructure:"shutdown_command" toml:"shutdown_command"`
	HibernateCommand string `mapstructure:"hibernate_command" toml:"hibernate_command"`
}

type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled" toml:"enabled"`
	Path          string `mapstructure:"path" toml:"path"`
	RetentionDays int    `mapstructure:"retention_days" toml:"retention_days"`
}

// flagKeys maps run flags onto configuration keys
var flagKeys = map[string]string{
	"delay":      "delay",
	"notify":     "notify",
	"log-level":  "log_level",
	"pid-file":   "pid_file",
	"vendor":     "device.vendor",
	"product":    "device.product",
	"serial":     "device.serial",
	"notifier":   "notifier.backend",
	"executor":   "executor.backend",
	"journal":    "journal.enabled",
	"journal-db": "journal.path",
}

// RegisterFlags adds the watchdog flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Configuration file")
	fs.IntP("delay", "d", 0, "Seconds to wait for the token to return before acting")
	fs.Bool("hibernate", false, "Hibernate instead of shutting down")
	fs.BoolP("poweroff", "p", false, "Shut down when the token is removed (default)")
	fs.BoolP("notify", "i", false, "Show a warning while the grace period runs")
	fs.String("notifier", notify.BackendNagbar, "Warning backend: nagbar or desktop")
	fs.String("executor", power.BackendCommand, "Action backend: command, logind or dry-run")
	fs.Bool("dry-run", false, "Log the action instead of performing it")
	fs.String("vendor", "1050", "USB vendor ID of the token (hex)")
	fs.String("product", "", "USB product ID of the token (hex)")
	fs.String("serial", "", "Serial number of the token")
	fs.String("log-level", string(DefaultLogLevel), "Log level: debug, info, warning or error")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("journal", false, "Record presence events in the journal")
	fs.String("journal-db", journal.DefaultDBPath(), "Path to the journal database")
	fs.String("pid-file", pid.DefaultPath(), "Path to the PID file")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("delay", 0)
	v.SetDefault("action", power.Shutdown.String())
	v.SetDefault("notify", false)
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("pid_file", pid.DefaultPath())

	v.SetDefault("device.vendor", "1050")
	v.SetDefault("device.product", "")
	v.SetDefault("device.serial", "")

	v.SetDefault("notifier.backend", notify.BackendNagbar)
	v.SetDefault("notifier.command", notify.DefaultNagbarCommand)
	v.SetDefault("notifier.message", notify.DefaultMessage)

	v.SetDefault("executor.backend", power.BackendCommand)
	v.SetDefault("executor.shutdown_command", power.DefaultShutdownCommand)
	v.SetDefault("executor.hibernate_command", power.DefaultHibernateCommand)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", journal.DefaultDBPath())
	v.SetDefault("journal.retention_days", journal.DefaultConfig().RetentionDays)
}

// DefaultSearchPaths lists the configuration files tried in order when none
// is given explicitly
func DefaultSearchPaths() []string {
	var paths []string

	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		paths = append(paths, filepath.Join(dir, "yubikill", configName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "yubikill", configName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+configName))
	}

	return append(paths, filepath.Join("/etc", configName))
}

// Load resolves the configuration from defaults, the configuration file,
// the environment and fs, in increasing order of precedence. fs may be nil.
func Load(fs *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix:   DefaultEnvPrefix,
		searchPaths: DefaultSearchPaths(),
		legacyPath:  DefaultLegacyPath(),
	}
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			o.configPath = f.Value.String()
		}
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	file, err := resolveFile(o)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.WithData(errors.ErrReadConfig, struct {
				Path  string
				Error string
			}{file, err.Error()})
		}
		// "i3" is the historical name of the notify switch
		if v.InConfig("i3") && !v.InConfig("notify") {
			v.SetDefault("notify", v.GetBool("i3"))
		}
	} else if o.legacyPath != "" {
		if info, err := os.Stat(o.legacyPath); err == nil && !info.IsDir() {
			settings, err := readLegacy(o.legacyPath)
			if err != nil {
				return nil, err
			}
			if err := v.MergeConfigMap(settings); err != nil {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
			file = o.legacyPath
		}
	}

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.File = file

	if fs != nil {
		applySwitches(cfg, fs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func resolveFile(o *options) (string, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", errors.New().WithData(errors.ErrReadConfig, struct {
				Path  string
				Error string
			}{path, err.Error()})
		}
		return path, nil
	}

	for _, candidate := range o.searchPaths {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.New().WithData(errors.ErrBindFlags, name)
		}
	}

	return nil
}

// applySwitches folds the boolean shorthands into their settings
func applySwitches(cfg *Config, fs *pflag.FlagSet) {
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed && f.Value.String() == "true"
	}

	switch {
	case changed("hibernate"):
		cfg.Action = power.Hibernate.String()
	case changed("poweroff"):
		cfg.Action = power.Shutdown.String()
	}

	if changed("dry-run") {
		cfg.Executor.Backend = power.BackendDryRun
	}

	if f := fs.Lookup("log-level"); f == nil || !f.Changed {
		switch {
		case changed("debug"):
			cfg.LogLevel = string(LogLevelDebug)
		case changed("verbose"):
			cfg.LogLevel = string(LogLevelInfo)
		}
	}
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Delay < 0 {
		return errFactory.WithData(errors.ErrInvalidDelay, c.Delay)
	}
	if _, err := power.ParseAction(c.Action); err != nil {
		return err
	}
	if err := c.MonitorConfig().Validate(); err != nil {
		return err
	}

	switch c.Notifier.Backend {
	case notify.BackendNagbar, notify.BackendDesktop:
	default:
		return errFactory.WithData(errors.ErrInvalidBackend, c.Notifier.Backend)
	}
	switch c.Executor.Backend {
	case power.BackendCommand, power.BackendLogind, power.BackendDryRun:
	default:
		return errFactory.WithData(errors.ErrInvalidBackend, c.Executor.Backend)
	}

	if _, err := c.Matcher(); err != nil {
		return err
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return c.JournalConfig().Validate()
}

// Matcher returns the device matcher for the configured token
func (c *Config) Matcher() (usb.Matcher, error) {
	errFactory := errors.New()

	vendor, err := usb.ParseID(c.Device.Vendor)
	if err != nil || vendor == 0 {
		return usb.Matcher{}, errFactory.WithData(errors.ErrInvalidVendorID, c.Device.Vendor)
	}
	product, err := usb.ParseID(c.Device.Product)
	if err != nil {
		return usb.Matcher{}, errFactory.WithData(errors.ErrInvalidArgument, c.Device.Product)
	}

	return usb.Matcher{
		VendorID:  vendor,
		ProductID: product,
		Serial:    c.Device.Serial,
	}, nil
}

func (c *Config) MonitorConfig() monitor.Config {
	action, _ := power.ParseAction(c.Action)

	cfg := monitor.DefaultConfig()
	cfg.GraceSeconds = c.Delay
	cfg.Notify = c.Notify
	cfg.Action = action
	if c.Notifier.Message != "" {
		cfg.Message = c.Notifier.Message
	}

	return cfg
}

func (c *Config) NotifyConfig() notify.Config {
	return notify.Config{
		Backend: c.Notifier.Backend,
		Command: c.Notifier.Command,
	}
}

func (c *Config) PowerConfig() power.Config {
	return power.Config{
		Backend:          c.Executor.Backend,
		ShutdownCommand:  c.Executor.ShutdownCommand,
		HibernateCommand: c.Executor.HibernateCommand,
	}
}

func (c *Config) JournalConfig() journal.Config {
	cfg := journal.DefaultConfig()
	cfg.Enabled = c.Journal.Enabled
	cfg.DBPath = c.Journal.Path
	cfg.RetentionDays = c.Journal.RetentionDays

	return cfg
}

// Level returns the logger level for the configured name
func (c *Config) Level() logger.LogLevel {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.WarnLevel
	}

	return level
}
