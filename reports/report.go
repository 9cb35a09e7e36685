// Package reports serializes the shared report model to and from JUnit
// XML, and applies the optional report transformations (name rewrites,
// secret redaction, attachment discovery).
package reports

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cloudbees-oss/juxr/types"
)

const schemaLocation = "https://maven.apache.org/surefire/maven-surefire-plugin/xsd/surefire-test-report.xsd"

type xmlSuite struct {
	XMLName  xml.Name `xml:"testsuite"`
	Name     string   `xml:"name,attr"`
	Tests    int      `xml:"tests,attr"`
	Failures int      `xml:"failures,attr"`
	Skipped  int      `xml:"skipped,attr"`
	Errors   int      `xml:"errors,attr"`
	Time     string   `xml:"time,attr"`
	// the schema attributes carry a namespace prefix, which the encoder
	// mangles when expressed as struct tags; literal attr names with an
	// empty Space are written verbatim
	Attrs []xml.Attr `xml:",any,attr"`
	Cases []xmlCase  `xml:"testcase"`
}

type xmlSuites struct {
	XMLName xml.Name   `xml:"testsuites"`
	Name    string     `xml:"name,attr"`
	Suites  []xmlSuite `xml:"testsuite"`
}

type xmlCase struct {
	Name      string      `xml:"name,attr"`
	ClassName string      `xml:"classname,attr"`
	Time      string      `xml:"time,attr"`
	Failure   *xmlOutcome `xml:"failure"`
	Error     *xmlOutcome `xml:"error"`
	Skipped   *xmlSkipped `xml:"skipped"`
	SystemOut *xmlCDATA   `xml:"system-out"`
	SystemErr *xmlCDATA   `xml:"system-err"`
}

type xmlOutcome struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type xmlSkipped struct {
	Message string `xml:"message,attr"`
}

type xmlCDATA struct {
	Text string `xml:",cdata"`
}

// Serialize renders the suite as a surefire-schema JUnit XML document
func Serialize(s *types.TestSuite) ([]byte, error) {
	st := s.Stats()
	doc := xmlSuite{
		Name:     s.Name,
		Tests:    st.Tests,
		Failures: st.Failures,
		Skipped:  st.Skipped,
		Errors:   st.Errors,
		Time:     formatSeconds(st.Duration),
		Attrs: []xml.Attr{
			{Name: xml.Name{Local: "xsi:noNamespaceSchemaLocation"}, Value: schemaLocation},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: "http://www.w3.org/2001/XMLSchema-instance"},
		},
	}
	for _, c := range s.Cases {
		xc := xmlCase{
			Name:      c.Name,
			ClassName: c.Class,
			Time:      formatSeconds(c.Duration),
		}
		outcome := &xmlOutcome{Message: c.Message, Type: c.Type}
		switch c.Status {
		case types.TestStatusFail:
			xc.Failure = outcome
		case types.TestStatusError:
			xc.Error = outcome
		case types.TestStatusSkip:
			xc.Skipped = &xmlSkipped{Message: c.Message}
		}
		if c.Stdout != "" {
			xc.SystemOut = &xmlCDATA{Text: c.Stdout}
		}
		if c.Stderr != "" {
			xc.SystemErr = &xmlCDATA{Text: c.Stderr}
		}
		doc.Cases = append(doc.Cases, xc)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize test suite %q: %w", s.Name, err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// Deserialize parses a JUnit XML document. A <testsuites> root has its
// suites flattened into one, since the rest of the pipeline deals in
// single suites.
func Deserialize(data []byte) (*types.TestSuite, error) {
	var doc xmlSuite
	if err := xml.Unmarshal(data, &doc); err == nil {
		return fromXMLSuites(doc.Name, []xmlSuite{doc}), nil
	}
	var multi xmlSuites
	if err := xml.Unmarshal(data, &multi); err != nil {
		return nil, fmt.Errorf("failed to parse JUnit XML report: %w", err)
	}
	name := multi.Name
	if name == "" && len(multi.Suites) > 0 {
		name = multi.Suites[0].Name
	}
	return fromXMLSuites(name, multi.Suites), nil
}

func fromXMLSuites(name string, docs []xmlSuite) *types.TestSuite {
	suite := types.NewTestSuite(name)
	for _, doc := range docs {
		for _, xc := range doc.Cases {
			c := types.TestCase{
				Name:     xc.Name,
				Class:    xc.ClassName,
				Status:   types.TestStatusPass,
				Duration: parseSeconds(xc.Time),
			}
			switch {
			case xc.Failure != nil:
				c.Status = types.TestStatusFail
				c.Type = xc.Failure.Type
				c.Message = xc.Failure.Message
			case xc.Error != nil:
				c.Status = types.TestStatusError
				c.Type = xc.Error.Type
				c.Message = xc.Error.Message
			case xc.Skipped != nil:
				c.Status = types.TestStatusSkip
				c.Message = xc.Skipped.Message
			}
			if xc.SystemOut != nil {
				c.Stdout = xc.SystemOut.Text
			}
			if xc.SystemErr != nil {
				c.Stderr = xc.SystemErr.Text
			}
			suite.Append(c)
		}
	}
	return suite
}

// WriteFile serializes the suite into dir as TEST-<suite>.xml
func WriteFile(dir string, s *types.TestSuite) (string, error) {
	data, err := Serialize(s)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("TEST-%s.xml", s.Name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write test results to %s: %w", path, err)
	}
	return path, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
