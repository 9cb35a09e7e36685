package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"
)

// IsValid checks if the status is one of the known values
func (s TestStatus) IsValid() bool {
	switch s {
	case TestStatusPass, TestStatusFail, TestStatusSkip, TestStatusError:
		return true
	}
	return false
}

// TestCase captures the outcome of a single test execution
type TestCase struct {
	Name     string        // Name of the test case
	Class    string        // Test group / class name
	Status   TestStatus    // Outcome of the execution
	Type     string        // Failure/error type label (e.g. "assertion", "error")
	Message  string        // Failure/error/skip message
	Stdout   string        // Captured standard output
	Stderr   string        // Captured standard error
	Duration time.Duration // Wall-clock duration of the execution
}

// TestSuite is an ordered collection of test cases plus suite-level metadata.
// Cases appear in the order they were appended; diagnostics collect
// non-fatal conditions observed while the suite was assembled.
type TestSuite struct {
	Name        string
	Cases       []TestCase
	Diagnostics []string
}

// NewTestSuite creates an empty suite with the given name
func NewTestSuite(name string) *TestSuite {
	return &TestSuite{Name: name}
}

// Append adds a case to the suite
func (s *TestSuite) Append(c TestCase) {
	s.Cases = append(s.Cases, c)
}

// AddDiagnostic records a non-fatal suite-level condition
func (s *TestSuite) AddDiagnostic(format string, args ...any) {
	s.Diagnostics = append(s.Diagnostics, fmt.Sprintf(format, args...))
}

// Stats holds the aggregate counters for a suite
type Stats struct {
	Tests    int
	Failures int
	Errors   int
	Skipped  int
	Duration time.Duration
}

// Stats computes the aggregate counters over all cases
func (s *TestSuite) Stats() Stats {
	var st Stats
	for _, c := range s.Cases {
		st.Tests++
		st.Duration += c.Duration
		switch c.Status {
		case TestStatusFail:
			st.Failures++
		case TestStatusError:
			st.Errors++
		case TestStatusSkip:
			st.Skipped++
		}
	}
	return st
}

// ExitCode maps the suite outcome to a process exit code: any failure or
// error yields 1, otherwise 0. Skipped cases do not affect the exit code.
func (s *TestSuite) ExitCode() int {
	for _, c := range s.Cases {
		if c.Status == TestStatusFail || c.Status == TestStatusError {
			return 1
		}
	}
	return 0
}

// StartSummary returns the console line announcing the suite run
func (s *TestSuite) StartSummary() string {
	return fmt.Sprintf("Running %s", s.Name)
}

// EndSummary returns the surefire-style console summary for the suite,
// including one detail line per failed or errored case.
func (s *TestSuite) EndSummary() string {
	st := s.Stats()
	marker := ""
	if st.Failures > 0 {
		marker = "<<< FAILURE"
	} else if st.Errors > 0 {
		marker = "<<< ERROR"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tests run: %d, Failures: %d, Errors: %d, Skipped: %d, Time elapsed: %s sec %s - in %s",
		st.Tests, st.Failures, st.Errors, st.Skipped, formatSeconds(st.Duration), marker, s.Name)
	for _, c := range s.Cases {
		switch c.Status {
		case TestStatusFail:
			fmt.Fprintf(&b, "\n%s(%s) Time elapsed: %s <<< FAILURE!\n\t%s: %s",
				c.Name, c.Class, formatSeconds(c.Duration), c.Type, c.Message)
		case TestStatusError:
			fmt.Fprintf(&b, "\n%s(%s) Time elapsed: %s <<< ERROR!\n\t%s: %s",
				c.Name, c.Class, formatSeconds(c.Duration), c.Type, c.Message)
		}
	}
	return b.String()
}

func formatSeconds(d time.Duration) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", d.Seconds()), "0"), ".")
}
