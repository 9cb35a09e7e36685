// Package tap converts Test Anything Protocol (TAP) version 12/13 output
// into the shared report model.
package tap

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/cloudbees-oss/juxr/types"
)

// DefaultClass is the class name assigned to TAP test cases
const DefaultClass = "tap"

var (
	versionRe = regexp.MustCompile(`^TAP version (\d+)$`)
	planRe    = regexp.MustCompile(`^1\.\.(\d+)(?:\s+#\s*(.*))?$`)
	testRe    = regexp.MustCompile(`^(not )?ok\b(?:\s+(\d+))?\s*([^#]*)(?:#\s*(\S+)\s*(.*))?$`)
	bailRe    = regexp.MustCompile(`^Bail out!\s*(.*)$`)
	diagRe    = regexp.MustCompile(`^#\s?(.*)$`)
	yamlOpen  = regexp.MustCompile(`^(\s+)---`)
	yamlClose = regexp.MustCompile(`^(\s+)\.\.\.`)
)

type state int

const (
	awaitVersion state = iota
	awaitPlan
	collectingResults
	done
)

// pending holds a result line until its trailing diagnostics have been seen
type pending struct {
	notOK     bool
	index     int
	name      string
	directive string
	message   string
	output    []string
	start     time.Time
}

// Parser is a single-pass line scanner for TAP streams. Feed it lines with
// FeedLine and seal it with Finish; a finished parser is not restartable.
// Result order mirrors declaration order; the optional numeric index only
// drives out-of-order diagnostics.
type Parser struct {
	suite      string
	state      state
	version    int
	planned    int
	havePlan   bool
	seq        int
	cur        *pending
	yamlIndent string
	bailMsg    string
	bailed     bool
	finished   bool

	cases []types.TestCase
	diags []string

	now func() time.Time
}

// NewParser creates a parser producing cases for the named suite
func NewParser(suite string) *Parser {
	return &Parser{
		suite:   suite,
		state:   awaitVersion,
		planned: -1,
		now:     time.Now,
	}
}

// WithClock replaces the wall clock used to infer per-case durations.
// Durations are only meaningful when the parser is fed in real time while
// a command runs; for pre-captured input they collapse to zero.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

// FeedLine consumes one line of TAP input. Unrecognized lines are ignored,
// as the TAP specification requires. The returned error is fatal to the
// parse (unsupported version, duplicate plan, feeding after Finish).
func (p *Parser) FeedLine(line string) error {
	if p.finished {
		return errors.New("parser is finished")
	}
	line = strings.TrimRight(stripansi.Strip(line), "\r\n")
	switch p.state {
	case done:
		// everything after a bail-out or trailing plan is discarded
		return nil
	case awaitVersion:
		p.state = awaitPlan
		if m := versionRe.FindStringSubmatch(line); m != nil {
			v, _ := strconv.Atoi(m[1])
			if v != 12 && v != 13 {
				return fmt.Errorf("unsupported TAP version %d, expected 12 or 13", v)
			}
			p.version = v
			return nil
		}
		// no version header means version 12 semantics
		p.version = 12
	}
	return p.bodyLine(line)
}

func (p *Parser) bodyLine(line string) error {
	if p.yamlIndent != "" {
		if m := yamlClose.FindStringSubmatch(line); m != nil && m[1] == p.yamlIndent {
			p.yamlIndent = ""
			return nil
		}
		if strings.HasPrefix(line, p.yamlIndent) {
			if p.cur != nil {
				p.cur.output = append(p.cur.output, line[len(p.yamlIndent):])
			}
			return nil
		}
		p.yamlIndent = ""
	}

	switch {
	case planRe.MatchString(line):
		return p.planLine(line)
	case testRe.MatchString(line):
		return p.resultLine(line)
	case bailRe.MatchString(line):
		p.bailMsg = strings.TrimSpace(bailRe.FindStringSubmatch(line)[1])
		p.bailed = true
		p.state = done
		return nil
	case diagRe.MatchString(line):
		if p.cur != nil {
			p.cur.output = append(p.cur.output, diagRe.FindStringSubmatch(line)[1])
		}
		return nil
	case yamlOpen.MatchString(line):
		p.yamlIndent = yamlOpen.FindStringSubmatch(line)[1]
		if p.cur != nil {
			p.cur.output = append(p.cur.output, "---")
		}
		return nil
	default:
		// unknown lines are ignored
		return nil
	}
}

func (p *Parser) planLine(line string) error {
	m := planRe.FindStringSubmatch(line)
	if p.havePlan {
		return errors.New("more than one test plan in the supplied input")
	}
	count, _ := strconv.Atoi(m[1])
	p.havePlan = true
	p.planned = count
	if directive := strings.TrimSpace(m[2]); directive != "" {
		word, reason, _ := strings.Cut(directive, " ")
		if strings.HasPrefix(strings.ToUpper(word), "SKIP") {
			p.skipRemaining(strings.TrimSpace(reason))
			p.state = done
			return nil
		}
	}
	if p.state == collectingResults {
		// trailing plan: the stream is complete
		p.flushPending()
		p.state = done
		return nil
	}
	p.state = collectingResults
	return nil
}

func (p *Parser) resultLine(line string) error {
	m := testRe.FindStringSubmatch(line)
	p.flushPending()
	p.state = collectingResults
	p.seq++
	index := p.seq
	if m[2] != "" {
		index, _ = strconv.Atoi(m[2])
		if index != p.seq {
			p.diags = append(p.diags, fmt.Sprintf("test %d reported out of order (expected %d)", index, p.seq))
		}
	}
	// a case's clock runs from its own result line until the next result
	// line (or the end of the stream) flushes it
	p.cur = &pending{
		notOK:     m[1] != "",
		index:     index,
		name:      strings.TrimSpace(m[3]),
		directive: strings.ToUpper(m[4]),
		message:   strings.TrimSpace(m[5]),
		start:     p.now(),
	}
	return nil
}

// flushPending converts the held result line, and any diagnostics that
// followed it, into a test case.
func (p *Parser) flushPending() {
	if p.cur == nil {
		return
	}
	cur := p.cur
	p.cur = nil
	p.yamlIndent = ""

	name := cur.name
	if name == "" {
		name = fmt.Sprintf("test %d", cur.index)
	}
	c := types.TestCase{
		Name:     name,
		Class:    DefaultClass,
		Stdout:   strings.Join(cur.output, "\n"),
		Duration: p.now().Sub(cur.start),
	}
	switch {
	case strings.HasPrefix(cur.directive, "SKIP"):
		c.Status = types.TestStatusSkip
		c.Message = cur.message
	case strings.HasPrefix(cur.directive, "TODO") && cur.notOK:
		// an expected failure is not a failure
		c.Status = types.TestStatusSkip
		c.Message = cur.message
	case strings.HasPrefix(cur.directive, "TODO"):
		c.Status = types.TestStatusFail
		c.Type = "todo"
		c.Message = fmt.Sprintf("unexpectedly passed: %s", cur.message)
	case cur.notOK:
		c.Status = types.TestStatusFail
		c.Type = "assertion"
		c.Message = cur.message
	default:
		c.Status = types.TestStatusPass
	}
	p.cases = append(p.cases, c)
}

// skipRemaining records the planned-but-unrun tests as skipped
func (p *Parser) skipRemaining(reason string) {
	p.flushPending()
	for p.seq < p.planned {
		p.seq++
		p.cases = append(p.cases, types.TestCase{
			Name:    fmt.Sprintf("test %d", p.seq),
			Class:   DefaultClass,
			Status:  types.TestStatusSkip,
			Message: reason,
		})
	}
}

// errorRemaining records the planned-but-unrun tests as errors, used when
// the stream bailed out.
func (p *Parser) errorRemaining(message string) {
	p.flushPending()
	for p.seq < p.planned {
		p.seq++
		p.cases = append(p.cases, types.TestCase{
			Name:    fmt.Sprintf("test %d", p.seq),
			Class:   DefaultClass,
			Status:  types.TestStatusError,
			Type:    "bailout",
			Message: message,
		})
	}
}

// Finish seals the parse and assembles the suite. A stream that produced
// results but never declared a plan is an error.
func (p *Parser) Finish() (*types.TestSuite, error) {
	p.flushPending()
	observed := len(p.cases)
	if p.bailed {
		msg := p.bailMsg
		if msg == "" {
			msg = "Bail out!"
		}
		if p.havePlan {
			p.errorRemaining(msg)
		} else {
			p.diags = append(p.diags, fmt.Sprintf("bailed out before a plan was declared: %s", msg))
		}
	} else if !p.havePlan && observed > 0 {
		return nil, errors.New("no test plan in the supplied input")
	} else if p.havePlan && observed != p.planned {
		p.diags = append(p.diags, fmt.Sprintf("test plan declared %d tests but %d were seen", p.planned, observed))
	}
	p.state = done
	p.finished = true
	suite := types.NewTestSuite(p.suite)
	suite.Cases = p.cases
	suite.Diagnostics = p.diags
	return suite, nil
}
