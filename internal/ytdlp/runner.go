// Package ytdlp wraps the external yt-dlp binary behind a bounded runner
// and exposes metadata, format probing and title lookups on top of it.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when an invocation exceeds its per-call deadline
var ErrTimeout = errors.New("invocation timed out")

// Runner executes one yt-dlp invocation and returns its output streams
//
//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs the configured binary via os/exec. Invocations share a
// fixed-capacity slot pool so a burst of slow extractions cannot exhaust
// the process; callers beyond capacity wait for a free slot.
type ExecRunner struct {
	binary string
	slots  chan struct{}
}

// NewExecRunner creates a runner for the given binary with maxConcurrent
// subprocess slots
func NewExecRunner(binary string, maxConcurrent int) *ExecRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 30
	}

	return &ExecRunner{
		binary: binary,
		slots:  make(chan struct{}, maxConcurrent),
	}
}

// Run invokes the binary with the given arguments under a hard deadline.
// A deadline overrun is reported as ErrTimeout; every other failure keeps
// the subprocess stderr available to the caller for diagnostics.
func (r *ExecRunner) Run(ctx context.Context, timeout time.Duration, args ...string) (string, string, error) {
	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
	defer func() { <-r.slots }()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return stdout.String(), stderr.String(), ErrTimeout
	}
	if err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), stderr.String(), nil
}
