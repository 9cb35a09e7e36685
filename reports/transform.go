package reports

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cloudbees-oss/juxr/types"
)

// attachmentRe matches the Jenkins junit-attachments convention for
// referencing files from test output.
var attachmentRe = regexp.MustCompile(`\[\[ATTACHMENT\|([^\]]+)]]`)

// Transformer rewrites a report before it leaves or enters the trust
// boundary: optional name prefixes and suffixes, redaction of secret
// values, and discovery plus re-anchoring of attachment references.
type Transformer struct {
	SuiteNamePrefix string
	SuiteNameSuffix string
	CaseNamePrefix  string
	CaseNameSuffix  string
	ClassPrefix     string
	ClassSuffix     string

	// AttachmentPrefix, when set, is prepended to every discovered
	// attachment path (used on import to re-anchor references into the
	// output directory).
	AttachmentPrefix string

	secrets     []string
	attachments []string
}

// AddSecret registers a value to redact from every report field
func (t *Transformer) AddSecret(value string) {
	if value == "" {
		return
	}
	t.secrets = append(t.secrets, value)
	// longer secrets redact first so substrings cannot leak the remainder
	sort.SliceStable(t.secrets, func(i, j int) bool {
		return len(t.secrets[i]) > len(t.secrets[j])
	})
}

// Attachments returns the attachment paths discovered by the most recent
// Apply, in discovery order without duplicates.
func (t *Transformer) Attachments() []string {
	return t.attachments
}

// Apply transforms the suite in place and records discovered attachments
func (t *Transformer) Apply(s *types.TestSuite) {
	t.attachments = nil
	seen := map[string]bool{}
	s.Name = t.SuiteNamePrefix + s.Name + t.SuiteNameSuffix
	for i := range s.Cases {
		c := &s.Cases[i]
		c.Name = t.CaseNamePrefix + c.Name + t.CaseNameSuffix
		c.Class = t.ClassPrefix + c.Class + t.ClassSuffix
		c.Message = t.scrub(c.Message, seen)
		c.Stdout = t.scrub(c.Stdout, seen)
		c.Stderr = t.scrub(c.Stderr, seen)
	}
	for i, d := range s.Diagnostics {
		s.Diagnostics[i] = t.redact(d)
	}
}

func (t *Transformer) scrub(text string, seen map[string]bool) string {
	text = t.redact(text)
	return attachmentRe.ReplaceAllStringFunc(text, func(m string) string {
		path := attachmentRe.FindStringSubmatch(m)[1]
		if t.AttachmentPrefix != "" {
			path = filepath.Join(t.AttachmentPrefix, filepath.Base(path))
		}
		if !seen[path] {
			seen[path] = true
			t.attachments = append(t.attachments, path)
		}
		return "[[ATTACHMENT|" + path + "]]"
	})
}

func (t *Transformer) redact(text string) string {
	for _, secret := range t.secrets {
		text = strings.ReplaceAll(text, secret, "******")
	}
	return text
}
