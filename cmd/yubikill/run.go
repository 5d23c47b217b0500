package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/yubikill/internal/config"
	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/journal"
	"codeberg.org/mutker/yubikill/internal/logger"
	"codeberg.org/mutker/yubikill/internal/monitor"
	"codeberg.org/mutker/yubikill/internal/notify"
	"codeberg.org/mutker/yubikill/internal/pid"
	"codeberg.org/mutker/yubikill/internal/power"
	"codeberg.org/mutker/yubikill/internal/usb"
	"github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the token and act when it is removed",
		Args:  cobra.NoArgs,
		RunE:  runWatchdog,
	}

	registerRunFlags(cmd)

	return cmd
}

func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("detach", false, "Run in the background")
}

func runWatchdog(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger.Init(cfg.Level(), logger.IsService())
	if cfg.File != "" {
		logger.Debug().Str("path", cfg.File).Msg("Config loaded")
	}

	oracle, err := newOracle(cfg)
	if err != nil {
		return err
	}

	// fail on a missing token before forking so the error reaches the terminal
	if _, err := oracle.Locate(cmd.Context()); err != nil {
		return err
	}

	if detach, _ := cmd.Flags().GetBool("detach"); detach {
		dctx := &daemon.Context{
			WorkDir: "/",
			Umask:   0o27,
		}

		child, err := dctx.Reborn()
		if err != nil {
			return errors.New().Wrap(errors.ErrDetach, err)
		}
		if child != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "yubikill is running in the background (pid %d)\n", child.Pid)
			return nil
		}
		defer func() {
			if err := dctx.Release(); err != nil {
				logger.Debug().Err(err).Msg("Failed to release daemon context")
			}
		}()
	}

	return watch(cmd.Context(), cfg, oracle)
}

var newEnumerator = func() usb.Enumerator {
	return usb.NewUdevEnumerator()
}

func newOracle(cfg *config.Config) (*usb.Oracle, error) {
	matcher, err := cfg.Matcher()
	if err != nil {
		return nil, err
	}

	return usb.NewOracle(newEnumerator(), matcher, logger.New("usb")), nil
}

func watch(parent context.Context, cfg *config.Config, oracle *usb.Oracle) error {
	errFactory := errors.New()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go handleSignals(ctx, cancel)

	if err := pid.Write(cfg.PIDFile); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	j, err := journal.NewService(cfg.JournalConfig(), logger.New("journal"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitJournal, err)
	}
	defer func() {
		if err := j.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close journal")
		}
	}()

	pruner, err := journal.NewPruner(j, cfg.Journal.RetentionDays, logger.New("journal"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitJournal, err)
	}
	if err := pruner.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("Journal pruning disabled")
	}
	defer func() {
		if err := pruner.Stop(); err != nil {
			logger.Debug().Err(err).Msg("Failed to stop journal pruner")
		}
	}()

	identity, err := oracle.Locate(ctx)
	if err != nil {
		return err
	}
	logger.Info().
		Str("device", identity.String()).
		Str("usb_id", identity.USBID()).
		Str("serial", identity.Serial).
		Msg("Device found")

	var notifier notify.Notifier
	if cfg.Notify {
		notifier, err = notify.New(cfg.NotifyConfig(), logger.New("notify"))
		if err != nil {
			return err
		}
		defer closeQuietly(notifier)
	}

	executor, err := power.New(cfg.PowerConfig(), logger.New("power"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitPower, err)
	}
	defer closeQuietly(executor)

	m, err := monitor.New(cfg.MonitorConfig(), oracle, identity, notifier, executor,
		monitor.WithRecorder(j),
		monitor.WithLogger(logger.New("monitor")),
	)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	err = m.Run(ctx)
	if errors.HasCode(err, monitor.ErrActionReturned) && cfg.Executor.Backend == power.BackendDryRun {
		logger.Info().Msg("Dry run complete")
		return nil
	}

	return err
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}

// closeQuietly releases backends holding a bus connection
func closeQuietly(v any) {
	c, ok := v.(interface{ Close() error })
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Debug().Err(err).Msg("Failed to close backend")
	}
}
