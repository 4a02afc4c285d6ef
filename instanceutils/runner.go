package instanceutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// ErrCommandFailed wraps non-zero exits of external commands.
var ErrCommandFailed = errors.New("command failed")

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands on the host.
type ExecRunner struct {
	log *slog.Logger
}

func NewExecRunner(log *slog.Logger) *ExecRunner {
	return &ExecRunner{log: log}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	r.log.Debug("Running command", slog.String("cmd", cmd.String()), slog.String("dir", cmd.Dir))
	if err := c.Run(); err != nil {
		r.log.Error("Command failed",
			slog.String("cmd", cmd.String()),
			slog.String("output", strings.TrimSpace(out.String())),
			"err", err)
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd.Name, err)
	}
	return nil
}

// Recorder is a Runner that only records the commands it is given. Commands
// whose name has an entry in Fail return that error.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
	Fail     map[string]error
}

func (r *Recorder) Run(_ context.Context, cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, cmd)
	if err, ok := r.Fail[cmd.Name]; ok {
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd.Name, err)
	}
	return nil
}

// Commands returns the recorded invocations in order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Names returns the recorded command lines.
func (r *Recorder) Names() []string {
	var out []string
	for _, c := range r.Commands() {
		out = append(out, c.String())
	}
	return out
}
