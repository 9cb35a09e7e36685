package juxr

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudbees-oss/juxr/reports"
	"github.com/cloudbees-oss/juxr/streams"
	"github.com/cloudbees-oss/juxr/types"
)

// chdir switches the working directory for the duration of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	previous, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(previous)
	})
}

// decodeStream reconstructs the frames an exporter wrote
func decodeStream(t *testing.T, data []byte) (map[string][]byte, map[string]string, string) {
	t.Helper()
	frames := map[string][]byte{}
	kinds := map[string]string{}
	var passthrough bytes.Buffer
	d := streams.NewDecoder(&passthrough, func(needle streams.Needle, payload []byte) error {
		frames[needle.Name] = payload
		kinds[needle.Name] = needle.Kind
		return nil
	}, nil)
	require.NoError(t, d.Run(bytes.NewReader(data)))
	require.Empty(t, d.Errs())
	return frames, kinds, passthrough.String()
}

func TestExporter_Export(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	s := types.NewTestSuite("demo")
	s.Append(types.TestCase{Name: "adds", Class: "demo", Status: types.TestStatusPass})
	report, err := reports.Serialize(s)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll("target/reports", 0o755))
	require.NoError(t, os.WriteFile("target/reports/TEST-demo.xml", report, 0o644))
	require.NoError(t, os.WriteFile("target/extra.log", []byte("log content"), 0o644))

	var out bytes.Buffer
	exporter := &Exporter{Session: "sess"}
	require.NoError(t, exporter.Export(&out,
		[]string{"target/**/TEST-*.xml"},
		[]string{"target/*.log"},
	))

	frames, kinds, passthrough := decodeStream(t, out.Bytes())
	assert.Empty(t, passthrough)
	require.Len(t, frames, 2)
	assert.Equal(t, streams.KindReport, kinds["target/reports/TEST-demo.xml"])
	assert.Equal(t, streams.KindAttachment, kinds["target/extra.log"])
	assert.Equal(t, []byte("log content"), frames["target/extra.log"])

	parsed, err := reports.Deserialize(frames["target/reports/TEST-demo.xml"])
	require.NoError(t, err)
	assert.Equal(t, "demo", parsed.Name)
}

func TestExporter_Export_ReferencedAttachments(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile("shot.png", []byte{0x89, 0x50}, 0o644))
	s := types.NewTestSuite("demo")
	s.Append(types.TestCase{
		Name: "shots", Class: "demo", Status: types.TestStatusPass,
		Stdout: "see [[ATTACHMENT|shot.png]]",
	})
	report, err := reports.Serialize(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile("TEST-demo.xml", report, 0o644))

	var out bytes.Buffer
	exporter := &Exporter{Session: "sess", Transformer: &reports.Transformer{}}
	require.NoError(t, exporter.Export(&out, []string{"TEST-demo.xml"}, nil))

	frames, kinds, _ := decodeStream(t, out.Bytes())
	require.Len(t, frames, 2)
	assert.Equal(t, streams.KindAttachment, kinds["shot.png"])
	assert.Equal(t, []byte{0x89, 0x50}, frames["shot.png"])
}

func TestExporter_Export_AppliesTransform(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	s := types.NewTestSuite("demo")
	s.Append(types.TestCase{
		Name: "login", Class: "demo", Status: types.TestStatusFail,
		Type: "assertion", Message: "auth with hunter2 failed",
	})
	report, err := reports.Serialize(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile("TEST-demo.xml", report, 0o644))

	tr := &reports.Transformer{SuiteNamePrefix: "ci."}
	tr.AddSecret("hunter2")
	var out bytes.Buffer
	exporter := &Exporter{Session: "sess", Transformer: tr}
	require.NoError(t, exporter.Export(&out, []string{"TEST-demo.xml"}, nil))

	frames, _, _ := decodeStream(t, out.Bytes())
	parsed, err := reports.Deserialize(frames["TEST-demo.xml"])
	require.NoError(t, err)
	assert.Equal(t, "ci.demo", parsed.Name)
	assert.Equal(t, "auth with ****** failed", parsed.Cases[0].Message)
}

func TestExporter_Export_Skip(t *testing.T) {
	var out bytes.Buffer
	exporter := &Exporter{Session: "sess", Skip: true}
	require.NoError(t, exporter.Export(&out, []string{"anything"}, nil))
	assert.Empty(t, out.Bytes())
}

func TestExporter_Export_MissingFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	var out bytes.Buffer
	exporter := &Exporter{Session: "sess"}
	require.NoError(t, exporter.Export(&out, nil, []string{"does-not-exist.log"}))

	frames, _, _ := decodeStream(t, out.Bytes())
	assert.Empty(t, frames)
}

func TestExporter_GeneratesSessionWhenUnset(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile("a.log", []byte("x"), 0o644))

	var out bytes.Buffer
	exporter := &Exporter{}
	require.NoError(t, exporter.Export(&out, nil, []string{"a.log"}))

	var sessions []string
	d := streams.NewDecoder(nil, func(needle streams.Needle, _ []byte) error {
		sessions = append(sessions, needle.Session)
		return nil
	}, nil)
	require.NoError(t, d.Run(bytes.NewReader(out.Bytes())))
	require.Len(t, sessions, 1)
	assert.NotEmpty(t, sessions[0])
}

func TestExportName(t *testing.T) {
	assert.Equal(t, "target/reports/TEST-a.xml", exportName(filepath.Join("target", "reports", "TEST-a.xml")))
	assert.Equal(t, "a.log", exportName("./a.log"))
}
