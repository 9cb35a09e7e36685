package juxr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Executor runs a workload command whose output shares the stream the
// export is framed onto. The child's stdout and stderr are forwarded line
// by line so its final output is fully flushed before the frames follow,
// and the child's exit code is propagated.
type Executor struct {
	Exporter         *Exporter
	RedirectErrToOut bool
	Log              log.Logger
}

// Run executes the command, then exports the report and file globs onto
// stdout. The returned code is the child's exit code.
func (e *Executor) Run(ctx context.Context, command []string, stdout, stderr io.Writer, reportGlobs, fileGlobs []string) (int, error) {
	logger := e.Log
	if logger == nil {
		logger = log.Root()
	}
	if len(command) == 0 {
		return 0, NewRuntimeError(errors.New("no command to execute"))
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return 0, NewRuntimeError(err)
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return 0, NewRuntimeError(err)
	}

	logger.Debug("Forking", "command", strings.Join(command, " "))
	if err := cmd.Start(); err != nil {
		return 0, NewRuntimeError(fmt.Errorf("the %q command failed to start: %w", strings.Join(command, " "), err))
	}

	// both pipes can target the same writer when redirecting, so writes
	// must be serialized
	outSink := &syncWriter{w: stdout}
	errSink := io.Writer(stderr)
	if e.RedirectErrToOut {
		errSink = outSink
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go pipeLines(&wg, outPipe, outSink)
	go pipeLines(&wg, errPipe, errSink)
	wg.Wait()

	code := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, NewRuntimeError(fmt.Errorf("the %q command did not finish: %w", strings.Join(command, " "), err))
		}
		code = exitErr.ExitCode()
	}
	logger.Debug("Command finished", "command", strings.Join(command, " "), "code", code)

	// the child's output is flushed, safe to emit our own frames now
	if err := e.Exporter.Export(stdout, reportGlobs, fileGlobs); err != nil {
		return code, err
	}
	return code, nil
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// pipeLines forwards r to w one line at a time so interleaved writers
// cannot split a line.
func pipeLines(wg *sync.WaitGroup, r io.Reader, w io.Writer) {
	defer wg.Done()
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := w.Write(line); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
