package power

import (
	"context"
	"os/exec"
	"strings"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
	"github.com/kballard/go-shellquote"
)

const (
	DefaultShutdownCommand  = "sudo poweroff -f"
	DefaultHibernateCommand = "sudo pm-hibernate"
)

// runner starts a command and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandExecutor runs a configured command line for each action.
type CommandExecutor struct {
	commands map[Action][]string
	run      runner
	logger   logger.Logger
}

// NewCommandExecutor splits the command lines with shell quoting rules.
func NewCommandExecutor(shutdown, hibernate string, log logger.Logger) (*CommandExecutor, error) {
	errFactory := errors.New()
	commands := make(map[Action][]string, 2)

	for action, line := range map[Action]string{Shutdown: shutdown, Hibernate: hibernate} {
		argv, err := shellquote.Split(line)
		if err != nil {
			return nil, errFactory.Wrap(ErrInvalidCommand, err).WithData(line)
		}
		if len(argv) == 0 {
			return nil, errFactory.WithData(ErrInvalidCommand, action.String()+": empty command")
		}
		commands[action] = argv
	}

	return &CommandExecutor{
		commands: commands,
		run:      execRunner,
		logger:   log,
	}, nil
}

func (e *CommandExecutor) Execute(ctx context.Context, action Action) error {
	errFactory := errors.New()

	argv, ok := e.commands[action]
	if !ok {
		return errFactory.WithData(ErrInvalidAction, action.String())
	}

	cmdline := shellquote.Join(argv...)
	e.logger.Warn().
		Str("action", action.String()).
		Str("cmd", cmdline).
		Msg("Executing terminal action")

	output, err := e.run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return errFactory.Wrap(ErrActionFailed, err).WithData(struct {
			Action string
			Cmd    string
			Error  string
			Output string
		}{
			Action: action.String(),
			Cmd:    cmdline,
			Error:  err.Error(),
			Output: strings.TrimSpace(string(output)),
		})
	}

	return nil
}
