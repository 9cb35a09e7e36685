package streams

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// base64 payload lines are wrapped so that line-length-limited transports
// (log aggregators mostly) cannot split them at arbitrary points.
const encodeLineWidth = 76

// Encoder frames artifacts onto an output stream shared with ordinary
// program output. Frames are strictly sequential; at most one may be open
// at a time. The session token scopes every frame the encoder emits and is
// injected so tests can use a fixed value.
type Encoder struct {
	w       io.Writer
	session string
	open    bool
}

// NewEncoder creates an encoder writing frames to w under the given session
func NewEncoder(w io.Writer, session string) *Encoder {
	return &Encoder{w: w, session: session}
}

// Session returns the session token scoping this encoder's frames
func (e *Encoder) Session() string {
	return e.session
}

// Begin opens a frame for the named artifact. It emits a blank line as a
// defensive separator against a previous unterminated line, then the
// opening needle. The returned writer must be closed to terminate the
// frame before another frame can begin.
func (e *Encoder) Begin(kind, name string) (*FrameWriter, error) {
	if e.open {
		return nil, errors.New("a frame is already open")
	}
	n := Needle{Session: e.session, Kind: kind, Name: name}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(e.w, "\n"+n.String()+"\n"); err != nil {
		return nil, fmt.Errorf("failed to write opening needle: %w", err)
	}
	e.open = true
	w := &lineWrapper{w: e.w}
	return &FrameWriter{
		enc:    e,
		needle: n,
		lines:  w,
		b64:    base64.NewEncoder(base64.StdEncoding, w),
	}, nil
}

// EncodeFrom frames the entire content of r as one artifact. If reading r
// fails mid-stream the closing needle is still emitted, so the receiver
// detects the corruption as a base64 decode failure instead of silently
// swallowing an unterminated frame, and the read error is returned.
func (e *Encoder) EncodeFrom(kind, name string, r io.Reader) error {
	fw, err := e.Begin(kind, name)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(fw, r)
	if err := fw.Close(); err != nil {
		return err
	}
	return copyErr
}

// FrameWriter accepts the raw bytes of one artifact and emits them as
// wrapped base64 text inside the open frame.
type FrameWriter struct {
	enc    *Encoder
	needle Needle
	lines  *lineWrapper
	b64    io.WriteCloser
	closed bool
}

// Write buffers and encodes p into the open frame
func (fw *FrameWriter) Write(p []byte) (int, error) {
	if fw.closed {
		return 0, errors.New("frame is closed")
	}
	return fw.b64.Write(p)
}

// Close flushes any buffered base64 state and emits the closing needle,
// byte-identical to the opening one, followed by a blank line.
func (fw *FrameWriter) Close() error {
	if fw.closed {
		return nil
	}
	fw.closed = true
	fw.enc.open = false
	if err := fw.b64.Close(); err != nil {
		return fmt.Errorf("failed to flush frame payload: %w", err)
	}
	if err := fw.lines.finish(); err != nil {
		return fmt.Errorf("failed to terminate frame payload: %w", err)
	}
	if _, err := io.WriteString(fw.enc.w, fw.needle.String()+"\n\n"); err != nil {
		return fmt.Errorf("failed to write closing needle: %w", err)
	}
	return nil
}

// lineWrapper inserts a newline after every encodeLineWidth bytes so the
// base64 text spans multiple bounded-width lines.
type lineWrapper struct {
	w   io.Writer
	col int
}

func (lw *lineWrapper) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		space := encodeLineWidth - lw.col
		chunk := p
		if len(chunk) > space {
			chunk = chunk[:space]
		}
		n, err := lw.w.Write(chunk)
		written += n
		lw.col += n
		if err != nil {
			return written, err
		}
		p = p[n:]
		if lw.col == encodeLineWidth {
			if _, err := io.WriteString(lw.w, "\n"); err != nil {
				return written, err
			}
			lw.col = 0
		}
	}
	return written, nil
}

// finish terminates the final partial payload line, if any
func (lw *lineWrapper) finish() error {
	if lw.col == 0 {
		return nil
	}
	lw.col = 0
	_, err := io.WriteString(lw.w, "\n")
	return err
}
