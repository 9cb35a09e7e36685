// Package suite loads and runs simple YAML-defined test plans: a mapping
// of test name to a command plus optional exit-code classification.
package suite

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cloudbees-oss/juxr/exitcodes"
)

// Plan is a named set of tests. Tests run in name order.
type Plan struct {
	tests map[string]*PlanTest
}

// PlanTest is one runnable test: the command to execute and how to
// interpret its exit code.
type PlanTest struct {
	Command    Command
	Classifier exitcodes.Classifier
}

// Command is the command union from the YAML short forms: either a shell
// string or an argv list.
type Command struct {
	Shell string
	Exec  []string
}

// IsZero reports whether no command was configured
func (c Command) IsZero() bool {
	return c.Shell == "" && len(c.Exec) == 0
}

// Display renders the command for log and error messages
func (c Command) Display() string {
	if c.Shell != "" {
		return fmt.Sprintf("sh -c '%s'", c.Shell)
	}
	out := ""
	for i, a := range c.Exec {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

// UnmarshalYAML accepts a scalar (shell string) or a sequence (argv list)
func (c *Command) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&c.Shell)
	case yaml.SequenceNode:
		return node.Decode(&c.Exec)
	default:
		return fmt.Errorf("line %d: command must be a string or a list of arguments", node.Line)
	}
}

// exitCodes accepts a single int or a list of ints
type exitCodes []int

func (e *exitCodes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var single int
		if err := node.Decode(&single); err != nil {
			return err
		}
		*e = []int{single}
		return nil
	}
	var many []int
	if err := node.Decode(&many); err != nil {
		return err
	}
	*e = many
	return nil
}

// planEntry is the long-form YAML shape of a test
type planEntry struct {
	Command Command   `yaml:"command"`
	Cmd     Command   `yaml:"cmd"`
	Success exitCodes `yaml:"success"`
	Failure exitCodes `yaml:"failure"`
	Skipped exitCodes `yaml:"skipped"`
}

// UnmarshalYAML accepts the three test shapes: a bare shell string, a bare
// argv list, or a mapping with command and exit-code sets.
func (t *PlanTest) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode || node.Kind == yaml.SequenceNode {
		return node.Decode(&t.Command)
	}
	var entry planEntry
	if err := node.Decode(&entry); err != nil {
		return err
	}
	t.Command = entry.Command
	if t.Command.IsZero() {
		t.Command = entry.Cmd
	}
	if t.Command.IsZero() {
		return fmt.Errorf("line %d: test has no command", node.Line)
	}
	t.Classifier = exitcodes.Classifier{
		Success: entry.Success,
		Failure: entry.Failure,
		Skipped: entry.Skipped,
	}
	return nil
}

// ReadPlan parses a plan and rejects ambiguous exit-code configuration
// before anything executes.
func ReadPlan(r io.Reader) (*Plan, error) {
	tests := map[string]*PlanTest{}
	if err := yaml.NewDecoder(r).Decode(&tests); err != nil {
		if errors.Is(err, io.EOF) {
			return &Plan{tests: tests}, nil
		}
		return nil, fmt.Errorf("failed to parse test plan: %w", err)
	}
	for name, test := range tests {
		if err := test.Classifier.Validate(); err != nil {
			return nil, fmt.Errorf("test %q: %w", name, err)
		}
	}
	return &Plan{tests: tests}, nil
}

// Len returns the number of tests in the plan
func (p *Plan) Len() int {
	return len(p.tests)
}

// Get returns the named test, or nil
func (p *Plan) Get(name string) *PlanTest {
	return p.tests[name]
}

// Names returns the test names in run order
func (p *Plan) Names() []string {
	names := make([]string, 0, len(p.tests))
	for name := range p.tests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
