package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTestStatus_IsValid(t *testing.T) {
	for _, s := range []TestStatus{TestStatusPass, TestStatusFail, TestStatusSkip, TestStatusError} {
		assert.True(t, s.IsValid(), "status %q should be valid", s)
	}
	assert.False(t, TestStatus("unknown").IsValid())
	assert.False(t, TestStatus("").IsValid())
}

func TestTestSuite_Stats(t *testing.T) {
	s := NewTestSuite("stats")
	s.Append(TestCase{Name: "a", Status: TestStatusPass, Duration: time.Second})
	s.Append(TestCase{Name: "b", Status: TestStatusFail, Duration: 500 * time.Millisecond})
	s.Append(TestCase{Name: "c", Status: TestStatusSkip})
	s.Append(TestCase{Name: "d", Status: TestStatusError, Duration: time.Second})

	st := s.Stats()
	assert.Equal(t, 4, st.Tests)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 2500*time.Millisecond, st.Duration)
}

func TestTestSuite_ExitCode(t *testing.T) {
	tests := []struct {
		name     string
		statuses []TestStatus
		want     int
	}{
		{name: "empty suite", statuses: nil, want: 0},
		{name: "all passing", statuses: []TestStatus{TestStatusPass, TestStatusPass}, want: 0},
		{name: "skips do not fail", statuses: []TestStatus{TestStatusPass, TestStatusSkip}, want: 0},
		{name: "failure", statuses: []TestStatus{TestStatusPass, TestStatusFail}, want: 1},
		{name: "error", statuses: []TestStatus{TestStatusError}, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewTestSuite("exit")
			for i, st := range tc.statuses {
				s.Append(TestCase{Name: string(rune('a' + i)), Status: st})
			}
			assert.Equal(t, tc.want, s.ExitCode())
		})
	}
}

func TestTestSuite_EndSummary(t *testing.T) {
	s := NewTestSuite("demo")
	s.Append(TestCase{Name: "first", Class: "demo", Status: TestStatusPass, Duration: 1500 * time.Millisecond})
	assert.Equal(t,
		"Tests run: 1, Failures: 0, Errors: 0, Skipped: 0, Time elapsed: 1.5 sec  - in demo",
		s.EndSummary())

	s.Append(TestCase{
		Name: "second", Class: "demo", Status: TestStatusFail,
		Type: "assertion", Message: "boom", Duration: 250 * time.Millisecond,
	})
	out := s.EndSummary()
	assert.Contains(t, out, "Tests run: 2, Failures: 1, Errors: 0, Skipped: 0,")
	assert.Contains(t, out, "<<< FAILURE - in demo")
	assert.Contains(t, out, "second(demo) Time elapsed: 0.25 <<< FAILURE!\n\tassertion: boom")
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0", formatSeconds(0))
	assert.Equal(t, "1.5", formatSeconds(1500*time.Millisecond))
	assert.Equal(t, "0.001", formatSeconds(time.Millisecond))
	assert.Equal(t, "2", formatSeconds(2*time.Second))
}
