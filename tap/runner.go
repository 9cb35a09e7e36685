package tap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/cloudbees-oss/juxr/exitcodes"
	"github.com/cloudbees-oss/juxr/types"
)

// Parse consumes a complete pre-captured TAP stream
func Parse(suite string, r io.Reader) (*types.TestSuite, error) {
	p := NewParser(suite)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := p.FeedLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read TAP input: %w", err)
	}
	return p.Finish()
}

// Runner executes a command and parses its stdout as TAP in real time, so
// per-case durations reflect the wall-clock gaps between result lines.
// The child's exit code is mapped through the classifier to judge the
// overall suite and is propagated as the runner's exit code.
type Runner struct {
	Suite      string
	Classifier exitcodes.Classifier
	Log        log.Logger
}

// Run executes the command and returns the assembled suite together with
// the child's exit code. The classifier must have been validated by the
// caller; Run validates again defensively since an ambiguous
// classification must never reach execution.
func (r *Runner) Run(ctx context.Context, command []string) (*types.TestSuite, int, error) {
	logger := r.Log
	if logger == nil {
		logger = log.Root()
	}
	if len(command) == 0 {
		return nil, 0, fmt.Errorf("no command to execute")
	}
	if err := r.Classifier.Validate(); err != nil {
		return nil, 0, err
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to pipe stdout of %q: %w", strings.Join(command, " "), err)
	}
	logger.Debug("Forking", "command", strings.Join(command, " "))
	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("the %q command failed to start: %w", strings.Join(command, " "), err)
	}

	parser := NewParser(r.Suite)
	var parseErr error
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if parseErr == nil {
			parseErr = parser.FeedLine(scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil && parseErr == nil {
		parseErr = fmt.Errorf("failed to read command output: %w", err)
	}

	code := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, 0, fmt.Errorf("the %q command did not finish: %w", strings.Join(command, " "), err)
		}
		code = exitErr.ExitCode()
	}
	if parseErr != nil {
		return nil, code, parseErr
	}

	suite, err := parser.Finish()
	if err != nil {
		return nil, code, err
	}
	switch r.Classifier.Classify(code) {
	case types.TestStatusFail, types.TestStatusError:
		suite.AddDiagnostic("command exited with code %d, treated as unsuccessful", code)
	case types.TestStatusSkip:
		suite.AddDiagnostic("command exited with code %d, treated as skipped", code)
	}
	return suite, code, nil
}
