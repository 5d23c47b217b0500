package notify

import (
	"context"
	"os/exec"
	"strconv"
	"syscall"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
	"github.com/kballard/go-shellquote"
	"golang.org/x/sys/unix"
)

// DefaultNagbarCommand is the command line the message is appended to.
const DefaultNagbarCommand = "i3-nagbar -m"

// NagbarNotifier runs an external program for as long as the warning
// should be visible.
type NagbarNotifier struct {
	argv   []string
	kill   func(pid int, sig syscall.Signal) error
	logger logger.Logger
}

func NewNagbarNotifier(command string, log logger.Logger) (*NagbarNotifier, error) {
	errFactory := errors.New()

	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidCommand, err)
	}
	if len(argv) == 0 {
		return nil, errFactory.WithData(ErrInvalidCommand, "empty command")
	}

	return &NagbarNotifier{argv: argv, kill: unix.Kill, logger: log}, nil
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *process) String() string {
	return "pid:" + strconv.Itoa(p.cmd.Process.Pid)
}

// Show starts the program in its own process group and returns at once.
// The run context is not bound to the child; only Dismiss ends it.
func (n *NagbarNotifier) Show(_ context.Context, message string) (Handle, error) {
	args := append(append([]string{}, n.argv[1:]...), message)
	cmd := exec.Command(n.argv[0], args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, errors.New().Wrap(ErrShowFailed, err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		n.logger.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("Warning process exited")
		close(p.done)
	}()

	n.logger.Debug().Int("pid", cmd.Process.Pid).Str("cmd", n.argv[0]).Msg("Warning process started")

	return p, nil
}

// Dismiss signals the process group and returns without waiting.
func (n *NagbarNotifier) Dismiss(h Handle) error {
	errFactory := errors.New()

	p, ok := h.(*process)
	if !ok || p == nil {
		return errFactory.New(ErrInvalidHandle)
	}

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := n.kill(-p.cmd.Process.Pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return errFactory.Wrap(ErrDismissFailed, err)
	}

	return nil
}
