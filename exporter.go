package juxr

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ethereum/go-ethereum/log"

	"github.com/cloudbees-oss/juxr/metrics"
	"github.com/cloudbees-oss/juxr/reports"
	"github.com/cloudbees-oss/juxr/streams"
)

// Exporter frames JUnit XML reports, their referenced attachments and any
// additional files onto a single outbound stream shared with ordinary
// program output.
type Exporter struct {
	// Session scopes every frame of this export; when empty a random
	// session is generated.
	Session     string
	Transformer *reports.Transformer
	// Skip disables exporting entirely (for containers that only
	// sometimes want reports on their log stream)
	Skip bool
	Log  log.Logger
}

// Export expands the report and file globs and writes one frame per file
// to out. Unreadable or unparseable individual files are logged and
// skipped; only failures of the output stream itself abort the export.
func (e *Exporter) Export(out io.Writer, reportGlobs, fileGlobs []string) error {
	logger := e.Log
	if logger == nil {
		logger = log.Root()
	}
	if e.Skip {
		logger.Info("Exporting skipped")
		return nil
	}
	session := e.Session
	if session == "" {
		session = streams.NewSession()
	}
	encoder := streams.NewEncoder(out, session)

	for _, path := range expandGlobs(logger, reportGlobs) {
		if err := e.exportReport(logger, encoder, path); err != nil {
			return err
		}
	}
	for _, path := range expandGlobs(logger, fileGlobs) {
		if err := e.exportFile(logger, encoder, streams.KindAttachment, path); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) exportReport(logger log.Logger, encoder *streams.Encoder, path string) error {
	logger.Debug("Exporting report", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("Could not read report", "path", path, "err", err)
		return nil
	}
	var attachments []string
	suite, err := reports.Deserialize(data)
	if err != nil {
		logger.Error("Could not parse report, exporting raw content", "path", path, "err", err)
	} else if e.Transformer != nil {
		t := *e.Transformer
		t.Apply(suite)
		attachments = t.Attachments()
		if data, err = reports.Serialize(suite); err != nil {
			return err
		}
	}
	if err := encoder.EncodeFrom(streams.KindReport, exportName(path), bytes.NewReader(data)); err != nil {
		return NewRuntimeError(fmt.Errorf("could not export report %s: %w", path, err))
	}
	metrics.RecordArtifactExported(streams.KindReport)
	for _, attachment := range attachments {
		if err := e.exportFile(logger, encoder, streams.KindAttachment, attachment); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) exportFile(logger log.Logger, encoder *streams.Encoder, kind, path string) error {
	logger.Debug("Exporting file", "path", path)
	f, err := os.Open(path)
	if err != nil {
		logger.Error("Could not read file", "path", path, "err", err)
		return nil
	}
	defer f.Close()
	if err := encoder.EncodeFrom(kind, exportName(path), f); err != nil {
		return NewRuntimeError(fmt.Errorf("could not export file %s: %w", path, err))
	}
	metrics.RecordArtifactExported(kind)
	return nil
}

// expandGlobs resolves * and ** style globs relative to the working
// directory, passing non-glob paths through as-is.
func expandGlobs(logger log.Logger, globs []string) []string {
	var paths []string
	for _, pattern := range globs {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			logger.Error("Invalid glob pattern", "pattern", pattern, "err", err)
			continue
		}
		if matches == nil && !strings.ContainsAny(pattern, "*?[{") {
			matches = []string{pattern}
		}
		paths = append(paths, matches...)
	}
	return paths
}

// exportName normalizes a path for use as the artifact name on the wire
func exportName(path string) string {
	if rel, err := filepath.Rel(".", path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	return filepath.ToSlash(path)
}
