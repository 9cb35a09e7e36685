package suite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/cloudbees-oss/juxr/types"
)

// Run executes the test and classifies its exit code. Spawn failures do
// not abort the suite run; they surface as error-status cases so the
// report still accounts for every planned test.
func (t *PlanTest) Run(ctx context.Context, class, name string, logger log.Logger) types.TestCase {
	if logger == nil {
		logger = log.Root()
	}
	if t.Command.IsZero() {
		return types.TestCase{
			Name:    name,
			Class:   class,
			Status:  types.TestStatusError,
			Type:    "error",
			Message: "No command configured",
		}
	}
	var cmd *exec.Cmd
	if t.Command.Shell != "" {
		cmd = exec.CommandContext(ctx, "sh", "-c", t.Command.Shell)
	} else {
		cmd = exec.CommandContext(ctx, t.Command.Exec[0], t.Command.Exec[1:]...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Forking", "command", t.Command.Display())
	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	c := types.TestCase{
		Name:     name,
		Class:    class,
		Stdout:   stripansi.Strip(stdout.String()),
		Stderr:   stripansi.Strip(stderr.String()),
		Duration: duration,
	}
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			c.Status = types.TestStatusError
			c.Type = "error"
			c.Message = fmt.Sprintf("The %q command failed to start: %v", t.Command.Display(), err)
			return c
		}
		code = exitErr.ExitCode()
	}

	classifier := t.Classifier.Normalize()
	message := fmt.Sprintf("Terminated with exit code %d, expected %v", code, classifier.Success)
	switch c.Status = classifier.Classify(code); c.Status {
	case types.TestStatusFail:
		c.Type = "assertion"
		c.Message = message
	case types.TestStatusError:
		c.Type = "error"
		c.Message = message
	case types.TestStatusSkip:
		c.Message = message
	}
	return c
}
