// Package exitcodes defines the standard exit codes used by juxr and the
// shared exit-code classifier used when commands are run as tests.
package exitcodes

import (
	"fmt"
	"slices"

	"github.com/cloudbees-oss/juxr/types"
)

// Exit code constants used by juxr itself:
//
// * Success (0): Used when all tests pass and all artifacts decode cleanly
// * TestFailure (1): Used when one or more tests fail or artifacts are lost
// * RuntimeErr (2): Used for runtime errors such as unreadable inputs
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)

// Classifier maps a child process exit code to a test status. Missing sets
// take their defaults via Normalize: success {0}, failure {1}, skipped none.
// A code matching no configured set is always an error, never a silent pass.
type Classifier struct {
	Success []int
	Failure []int
	Skipped []int
}

// Normalize applies the default sets where none were configured
func (c Classifier) Normalize() Classifier {
	if c.Success == nil {
		c.Success = []int{0}
	}
	if c.Failure == nil {
		c.Failure = []int{1}
	}
	return c
}

// AmbiguousClassificationError reports an exit code configured in more than
// one set. Overlap is rejected at configuration load, before any execution.
type AmbiguousClassificationError struct {
	Code int
	Sets []string
}

func (e *AmbiguousClassificationError) Error() string {
	return fmt.Sprintf("exit code %d is configured as both %s and %s", e.Code, e.Sets[0], e.Sets[1])
}

// Validate rejects configurations where the same exit code appears in more
// than one of the configured sets. Defaults are applied first, so an
// explicit `skipped: [0]` with a defaulted success set is also ambiguous.
func (c Classifier) Validate() error {
	c = c.Normalize()
	sets := []struct {
		name  string
		codes []int
	}{
		{"skipped", c.Skipped},
		{"failure", c.Failure},
		{"success", c.Success},
	}
	for i, a := range sets {
		for _, b := range sets[i+1:] {
			for _, code := range a.codes {
				if slices.Contains(b.codes, code) {
					return &AmbiguousClassificationError{Code: code, Sets: []string{a.name, b.name}}
				}
			}
		}
	}
	return nil
}

// Classify maps an exit code to a test status. Evaluation order is
// skipped, then failure, then success; anything unmatched is an error.
func (c Classifier) Classify(code int) types.TestStatus {
	c = c.Normalize()
	switch {
	case slices.Contains(c.Skipped, code):
		return types.TestStatusSkip
	case slices.Contains(c.Failure, code):
		return types.TestStatusFail
	case slices.Contains(c.Success, code):
		return types.TestStatusPass
	default:
		return types.TestStatusError
	}
}
