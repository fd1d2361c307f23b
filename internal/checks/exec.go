// Package checks implements the concrete gate check providers: subprocess
// checks (typecheck, tests, lint) with streamed output and per-check
// deadlines, and pure filesystem checks (memory, traceability, evidence).
package checks

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"conductor/internal/logging"
)

// RunResult is the outcome of one subprocess invocation.
type RunResult struct {
	ExitCode int
	Output   string
	TimedOut bool
	Duration time.Duration
}

// runCommand executes cmdline in dir, streaming every output line through
// onLine (which may be nil). The command is launched without a shell unless
// useShell is set; deadline handling comes from ctx, which kills the process
// on expiry.
func runCommand(ctx context.Context, cmdline, dir string, useShell bool, onLine func(string)) (*RunResult, error) {
	var cmd *exec.Cmd
	if useShell {
		cmd = exec.CommandContext(ctx, "sh", "-c", cmdline)
	} else {
		parts := strings.Fields(cmdline)
		cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	logging.ChecksDebug("Executing: %s (shell=%v)", cmdline, useShell)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var buf strings.Builder
	sink := func(line string) {
		mu.Lock()
		buf.WriteString(line)
		buf.WriteByte('\n')
		mu.Unlock()
		if onLine != nil {
			onLine(line)
		}
	}

	var g errgroup.Group
	for _, r := range []io.Reader{stdout, stderr} {
		r := r
		g.Go(func() error {
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				sink(scanner.Text())
			}
			return nil
		})
	}

	_ = g.Wait()
	werr := cmd.Wait()

	res := &RunResult{
		Output:   buf.String(),
		Duration: time.Since(started),
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}
	switch {
	case werr == nil:
		res.ExitCode = 0
	case cmd.ProcessState != nil:
		res.ExitCode = cmd.ProcessState.ExitCode()
	default:
		res.ExitCode = -1
	}

	logging.ChecksDebug("Command done: exit=%d timedOut=%v (%s)", res.ExitCode, res.TimedOut, res.Duration)
	return res, nil
}

// needsShell reports whether a configured command line contains shell
// metacharacters and must go through sh -c.
func needsShell(cmdline string) bool {
	return strings.ContainsAny(cmdline, "|&;<>$`(){}")
}
