package streams

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_EncodeFrom(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "sess")
	require.NoError(t, enc.EncodeFrom(KindAttachment, "hello.txt", strings.NewReader("hello world")))

	needle := "[[juxr::stream::sess::attachment::hello.txt]]"
	want := "\n" + needle + "\n" +
		base64.StdEncoding.EncodeToString([]byte("hello world")) + "\n" +
		needle + "\n\n"
	assert.Equal(t, want, buf.String())
}

func TestEncoder_WrapsLongPayloads(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "sess")
	payload := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 100)
	require.NoError(t, enc.EncodeFrom(KindAttachment, "blob.bin", bytes.NewReader(payload)))

	lines := strings.Split(strings.Trim(buf.String(), "\n"), "\n")
	require.Greater(t, len(lines), 4, "payload should span multiple lines")
	for _, line := range lines[1 : len(lines)-1] {
		assert.LessOrEqual(t, len(line), 76)
	}
	// all payload lines but the last are exactly full width
	for _, line := range lines[1 : len(lines)-2] {
		assert.Len(t, line, 76)
	}

	joined := strings.Join(lines[1:len(lines)-1], "")
	decoded, err := base64.StdEncoding.DecodeString(joined)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestEncoder_EmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "sess")
	require.NoError(t, enc.EncodeFrom(KindReport, "empty.xml", strings.NewReader("")))

	needle := "[[juxr::stream::sess::report::empty.xml]]"
	assert.Equal(t, "\n"+needle+"\n"+needle+"\n\n", buf.String())
}

func TestEncoder_RejectsSecondOpenFrame(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "sess")
	fw, err := enc.Begin(KindReport, "a.xml")
	require.NoError(t, err)
	_, err = enc.Begin(KindReport, "b.xml")
	assert.Error(t, err)
	require.NoError(t, fw.Close())

	// once the first frame is closed a new one may begin
	fw, err = enc.Begin(KindReport, "b.xml")
	require.NoError(t, err)
	require.NoError(t, fw.Close())
}

func TestEncoder_RejectsInvalidNames(t *testing.T) {
	enc := NewEncoder(io.Discard, "sess")
	_, err := enc.Begin(KindReport, "")
	assert.Error(t, err)
	_, err = enc.Begin(KindReport, "a]]b")
	assert.Error(t, err)
}

func TestEncoder_EncodeFromReadFailure(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "sess")
	readErr := errors.New("disk gone")
	err := enc.EncodeFrom(KindAttachment, "partial.bin", io.MultiReader(
		strings.NewReader("some data"),
		&failingReader{err: readErr},
	))
	require.ErrorIs(t, err, readErr)

	// the frame is still terminated so readers do not see a truncation
	assert.True(t, strings.HasSuffix(buf.String(),
		"[[juxr::stream::sess::attachment::partial.bin]]\n\n"))
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
