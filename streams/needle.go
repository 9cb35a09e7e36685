// Package streams implements the protocol that multiplexes binary
// artifacts through an unstructured, line-oriented log stream. Each
// artifact is framed by a pair of identical needle marker lines with the
// base64 text of the artifact content between them; everything outside a
// frame passes through untouched.
package streams

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	needlePrefix = "[[juxr::stream::"
	needleSep    = "::"
	needleSuffix = "]]"
)

// Artifact kinds carried in the needle marker. The set is extensible; the
// decoder treats any unknown kind as an attachment.
const (
	KindReport     = "report"
	KindAttachment = "attachment"
)

// Needle identifies one framed artifact within a stream. The session token
// is opaque and unique per encoder run so that frames from concurrent or
// retried runs sharing one log stream cannot be confused.
type Needle struct {
	Session string
	Kind    string
	Name    string
}

// NewSession generates a random session token
func NewSession() string {
	return uuid.New().String()
}

// String renders the marker line for this needle. Both the opening and the
// closing occurrence of a frame use the identical rendering.
func (n Needle) String() string {
	return needlePrefix + n.Session + needleSep + n.Kind + needleSep + n.Name + needleSuffix
}

// Validate checks that the needle fields cannot corrupt the marker syntax
func (n Needle) Validate() error {
	for _, f := range []struct{ field, value string }{
		{"session", n.Session},
		{"kind", n.Kind},
		{"name", n.Name},
	} {
		if f.value == "" {
			return fmt.Errorf("needle %s must not be empty", f.field)
		}
		if strings.Contains(f.value, needleSep) || strings.Contains(f.value, needleSuffix) {
			return fmt.Errorf("needle %s %q must not contain %q or %q", f.field, f.value, needleSep, needleSuffix)
		}
	}
	return nil
}

// ParseNeedle parses a marker line. The marker must be the full content of
// the line once surrounding whitespace is trimmed; markers embedded in
// other text are not recognized, which keeps a random session token
// sufficient to make collisions with payload content statistically
// impossible.
func ParseNeedle(line string) (Needle, bool) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, needlePrefix) || !strings.HasSuffix(s, needleSuffix) {
		return Needle{}, false
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, needlePrefix), needleSuffix)
	parts := strings.SplitN(s, needleSep, 3)
	if len(parts) != 3 {
		return Needle{}, false
	}
	n := Needle{Session: parts[0], Kind: parts[1], Name: parts[2]}
	if n.Validate() != nil {
		return Needle{}, false
	}
	return n, true
}
