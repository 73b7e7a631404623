package build

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	deverrors "github.com/instant-compose/devloop/internal/errors"
)

// Command describes one invocation of the external build.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env holds KEY=VALUE overrides applied on top of the inherited
	// environment.
	Env []string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// RunOutput is what a finished build process produced.
type RunOutput struct {
	// Log is stdout and stderr interleaved as the process wrote them.
	Log      []byte
	ExitCode int
}

// Runner executes the external build command. Run returns an error only when
// the process could not be started or ctx ended; a non-zero exit is reported
// through RunOutput.ExitCode.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*RunOutput, error)
}

const pipeWaitDelay = 2 * time.Second

// ExecRunner runs build commands as child processes.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*RunOutput, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	// Build daemons may inherit the output pipes and outlive the command.
	c.WaitDelay = pipeWaitDelay

	output, err := c.CombinedOutput()
	if err == nil {
		return &RunOutput{Log: output}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, exec.ErrWaitDelay) && c.ProcessState != nil {
		return &RunOutput{Log: output, ExitCode: c.ProcessState.ExitCode()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &RunOutput{Log: output, ExitCode: exitErr.ExitCode()}, nil
	}

	return nil, deverrors.NewBuildError(deverrors.CodeBuildStart,
		"starting build command "+cmd.String(), err).
		WithContext("dir", cmd.Dir)
}
