// Package subproc runs external binaries with a text-in/text-out
// contract: the payload is written to stdin, stdout and stderr are
// collected to completion, and a nonzero exit is reported as an error
// carrying the verbatim stderr text.
package subproc

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("subproc")

// SubprocessError reports a child process which exited with a nonzero
// status. Stderr is surfaced verbatim and never parsed.
type SubprocessError struct {
	Name     string
	ExitCode int
	Stderr   string
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

// TimeoutError reports a child process killed because its context
// expired before it terminated.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s killed after %v", e.Name, e.Timeout)
	}
	return fmt.Sprintf("%s killed by cancellation", e.Name)
}

// Runner invokes external binaries. A zero Timeout disables the bound;
// a hung child then blocks its caller indefinitely.
type Runner struct {
	Timeout time.Duration
}

// Run starts name with args, writes input to its stdin, closes it and
// collects stdout and stderr until the process exits. The call blocks
// for the whole process lifetime; the child is always reaped, also when
// it is killed on context expiry.
func (r *Runner) Run(ctx context.Context, name string, args []string, input string) (string, string, error) {
	parent := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("running %s %v", name, args)
	err := cmd.Run()
	if err != nil {
		// CommandContext has already killed and reaped the child here.
		if ctx.Err() != nil {
			if parent.Err() != nil {
				// The caller's context expired, not our bound.
				return "", "", &TimeoutError{Name: name}
			}
			return "", "", &TimeoutError{Name: name, Timeout: r.Timeout}
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", "", &SubprocessError{
				Name:     name,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return "", "", fmt.Errorf("running %s: %v", name, err)
	}

	return stdout.String(), stderr.String(), nil
}
