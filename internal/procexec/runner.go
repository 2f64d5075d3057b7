// Package procexec is the C2 seam: launching a child process and
// streaming its combined stdout/stderr back line by line. Nothing
// above this package ever calls os/exec directly, so tests can swap
// in ScriptedRunner.
package procexec

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Runner is the abstract subprocess seam C5/C6 depend on.
type Runner interface {
	// Run launches program with args, streaming every non-empty line
	// from stdout and stderr through onLine (which may be nil). It
	// returns the child's exit code and the last non-empty line seen
	// across both streams. traceID is not passed to onLine and is not
	// logged by Runner; callers use it in their own onLine closure.
	Run(ctx context.Context, traceID, program string, args []string, onLine func(line string)) (exitCode int, lastMessage string, err error)
}

// ExecRunner is the real Runner, backed by os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (r *ExecRunner) Run(ctx context.Context, traceID, program string, args []string, onLine func(line string)) (int, string, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	if dir := filepath.Dir(program); dir != "." && dir != "" {
		cmd.Dir = dir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, "", errors.Wrap(err, "opening stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, "", errors.Wrap(err, "opening stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return -1, "", errors.Wrapf(err, "starting %s", program)
	}

	var (
		mu          sync.Mutex
		lastMessage string
	)
	// handle serializes both streams through mu, so onLine (§4.1: "both
	// streams redirected through one line handler") never runs
	// concurrently for stdout and stderr; callers rely on this to
	// append to their own line buffer without a lock of their own.
	handle := func(line string) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		lastMessage = line
		if onLine != nil {
			onLine(line)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); scanLines(stdout, handle) }()
	go func() { defer wg.Done(); scanLines(stderr, handle) }()
	wg.Wait()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return -1, lastMessage, errors.Wrap(ctx.Err(), "subprocess cancelled")
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), lastMessage, nil
		}
		return -1, lastMessage, errors.Wrapf(waitErr, "running %s", program)
	}
	return 0, lastMessage, nil
}

func scanLines(r io.Reader, handle func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		handle(scanner.Text())
	}
}
