// Package probe runs external diagnostic commands with hard timeouts and
// fans per-item queries out over a bounded worker pool.
package probe

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// State classifies the outcome of a single probe.
type State int

const (
	// Completed means the process ran to completion, successfully or not.
	// Check ExitCode to tell the two apart.
	Completed State = iota
	// TimedOut means the process exceeded its deadline and was killed.
	TimedOut
	// LaunchFailed means the process never started (missing binary,
	// permission problem).
	LaunchFailed
)

func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed out"
	case LaunchFailed:
		return "launch failed"
	default:
		return "unknown"
	}
}

// Result is the three-way outcome of one external command.
type Result struct {
	State    State
	Output   []byte
	ExitCode int
	Err      error
}

// OK reports whether the command completed with a zero exit status.
func (r Result) OK() bool {
	return r.State == Completed && r.ExitCode == 0
}

// Run executes command with args, killing it once timeout elapses.
// Standard output and standard error are captured together. Run never
// retries; that is the caller's call.
func Run(timeout time.Duration, command string, args ...string) Result {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Debug().Str("command", command).Strs("args", args).Dur("timeout", timeout).Msg("running probe")

	cmd := exec.CommandContext(ctx, command, args...)
	out, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		log.Warn().Str("command", command).Dur("timeout", timeout).Msg("probe timed out")
		return Result{State: TimedOut, Output: out, Err: ctx.Err()}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{State: Completed, Output: out, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return Result{State: LaunchFailed, Err: err}
	}

	return Result{State: Completed, Output: out}
}
