package streams

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// FrameHandler receives each successfully reconstructed artifact. An error
// returned from the handler aborts decoding; it signals a sink failure
// (e.g. an unwritable output directory), not a protocol problem.
type FrameHandler func(needle Needle, payload []byte) error

// TruncatedFrameError indicates the input ended while a frame was open.
// The accumulated payload is discarded; no partial artifact is produced.
type TruncatedFrameError struct {
	Needle Needle
}

func (e *TruncatedFrameError) Error() string {
	return fmt.Sprintf("stream ended inside frame %s: artifact truncated", e.Needle)
}

// MalformedBase64Error indicates a frame closed cleanly but its payload
// did not decode. The artifact is dropped; decoding continues.
type MalformedBase64Error struct {
	Needle Needle
	Err    error
}

func (e *MalformedBase64Error) Error() string {
	return fmt.Sprintf("frame %s payload is not valid base64: %v", e.Needle, e.Err)
}

func (e *MalformedBase64Error) Unwrap() error { return e.Err }

// ProtocolViolationError indicates an opening needle was seen while
// another frame was open. The open frame is abandoned and the new needle
// starts a fresh frame.
type ProtocolViolationError struct {
	Open Needle
	Seen Needle
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("needle %s opened while frame %s was still open: abandoning partial frame", e.Seen, e.Open)
}

// Decoder scans an inbound line stream, reconstructs framed artifacts and
// forwards everything else byte-for-byte to the passthrough writer. It is
// an explicit two-state machine: idle (scanning for an opening needle) or
// in-frame (accumulating base64 payload until the matching close). Exactly
// one frame can be open at a time; a second session interleaving frames
// into the same physical stream is a protocol violation, not reentrant
// multiplexing.
type Decoder struct {
	passthrough io.Writer
	handler     FrameHandler
	logger      log.Logger

	inFrame bool
	open    Needle
	payload strings.Builder

	// heldBlank buffers at most one blank line so the encoder's defensive
	// separator before an opening needle can be suppressed while ordinary
	// blank lines in the surrounding output are preserved.
	heldBlank string
	haveBlank bool
	// skipBlank swallows the single blank line the encoder emits after a
	// closing needle.
	skipBlank bool

	errs []error
}

// NewDecoder creates a decoder forwarding non-protocol content to
// passthrough and reconstructed artifacts to handler.
func NewDecoder(passthrough io.Writer, handler FrameHandler, logger log.Logger) *Decoder {
	if logger == nil {
		logger = log.Root()
	}
	return &Decoder{passthrough: passthrough, handler: handler, logger: logger}
}

// Run consumes r line by line until EOF, then finishes the decode. Only
// I/O failures (reading the input, writing passthrough, sink errors) are
// returned; protocol-level problems are collected and reported by Errs.
func (d *Decoder) Run(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if perr := d.ProcessLine(line); perr != nil {
				return perr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input stream: %w", err)
		}
	}
	return d.Finish()
}

// ProcessLine handles one physical line, including its terminator if any
func (d *Decoder) ProcessLine(line string) error {
	if d.inFrame {
		return d.frameLine(line)
	}
	return d.idleLine(line)
}

func (d *Decoder) idleLine(line string) error {
	if needle, ok := ParseNeedle(line); ok {
		// the held blank was the encoder's defensive separator
		d.haveBlank = false
		d.skipBlank = false
		d.inFrame = true
		d.open = needle
		d.payload.Reset()
		d.logger.Debug("Opened frame", "needle", needle.String())
		return nil
	}
	if strings.TrimSpace(line) == "" {
		if d.skipBlank {
			d.skipBlank = false
			return nil
		}
		if err := d.flushBlank(); err != nil {
			return err
		}
		d.heldBlank = line
		d.haveBlank = true
		return nil
	}
	d.skipBlank = false
	if err := d.flushBlank(); err != nil {
		return err
	}
	return d.forward(line)
}

func (d *Decoder) frameLine(line string) error {
	needle, ok := ParseNeedle(line)
	if !ok {
		// payload, verbatim
		d.payload.WriteString(line)
		return nil
	}
	if needle == d.open {
		return d.closeFrame()
	}
	// a different needle while a frame is open: abandon the malformed
	// frame and track the new one
	d.errs = append(d.errs, &ProtocolViolationError{Open: d.open, Seen: needle})
	d.logger.Warn("Protocol violation", "open", d.open.String(), "seen", needle.String())
	d.open = needle
	d.payload.Reset()
	return nil
}

func (d *Decoder) closeFrame() error {
	needle := d.open
	d.inFrame = false
	d.skipBlank = true
	data, err := decodePayload(d.payload.String())
	d.payload.Reset()
	if err != nil {
		d.errs = append(d.errs, &MalformedBase64Error{Needle: needle, Err: err})
		d.logger.Warn("Dropping artifact with undecodable payload", "needle", needle.String(), "err", err)
		return nil
	}
	d.logger.Debug("Decoded frame", "needle", needle.String(), "bytes", len(data))
	if d.handler == nil {
		return nil
	}
	if err := d.handler(needle, data); err != nil {
		return fmt.Errorf("failed to materialize artifact %q: %w", needle.Name, err)
	}
	return nil
}

// Finish signals end of input. A still-open frame is a truncation: the
// partial payload is discarded and the condition recorded.
func (d *Decoder) Finish() error {
	if err := d.flushBlank(); err != nil {
		return err
	}
	if d.inFrame {
		d.errs = append(d.errs, &TruncatedFrameError{Needle: d.open})
		d.logger.Warn("Input ended mid-frame", "needle", d.open.String())
		d.inFrame = false
		d.payload.Reset()
	}
	return nil
}

// Errs returns the recoverable protocol errors observed so far, in order
func (d *Decoder) Errs() []error {
	return d.errs
}

func (d *Decoder) flushBlank() error {
	if !d.haveBlank {
		return nil
	}
	d.haveBlank = false
	return d.forward(d.heldBlank)
}

func (d *Decoder) forward(line string) error {
	if d.passthrough == nil {
		return nil
	}
	if _, err := io.WriteString(d.passthrough, line); err != nil {
		return fmt.Errorf("failed to write passthrough: %w", err)
	}
	return nil
}

// decodePayload strips whitespace, control characters and non-ASCII bytes
// from the accumulated frame text before base64 decoding, so transports
// that re-wrap or pad lines do not corrupt the payload.
func decodePayload(s string) ([]byte, error) {
	clean := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c > 32 && c < 128 {
			clean = append(clean, c)
		}
	}
	return base64.StdEncoding.DecodeString(string(clean))
}
