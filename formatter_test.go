package juxr

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cloudbees-oss/juxr/types"
)

func TestFormatSuite(t *testing.T) {
	s := types.NewTestSuite("demo")
	s.Append(types.TestCase{Name: "adds", Status: types.TestStatusPass, Duration: 120 * time.Millisecond})
	s.Append(types.TestCase{Name: "subtracts", Status: types.TestStatusFail, Message: "expected 4 got 5"})
	s.Append(types.TestCase{Name: "divides", Status: types.TestStatusSkip, Message: "no fpu"})
	s.AddDiagnostic("test plan declared 4 tests but 3 were seen")

	var out bytes.Buffer
	FormatSuite(&out, s)
	rendered := out.String()

	assert.Contains(t, rendered, "demo (120ms)")
	assert.Contains(t, rendered, "adds")
	assert.Contains(t, rendered, "ok")
	assert.Contains(t, rendered, "FAIL")
	assert.Contains(t, rendered, "expected 4 got 5")
	assert.Contains(t, rendered, "skipped")
	assert.Contains(t, rendered, "3 tests")
	assert.Contains(t, rendered, "1 failed, 0 errored, 1 skipped")
	assert.Contains(t, rendered, "# test plan declared 4 tests but 3 were seen")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "ok", statusLabel(types.TestStatusPass))
	assert.Equal(t, "FAIL", statusLabel(types.TestStatusFail))
	assert.Equal(t, "ERROR", statusLabel(types.TestStatusError))
	assert.Equal(t, "skipped", statusLabel(types.TestStatusSkip))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "0s", formatDuration(123*time.Microsecond))
}
