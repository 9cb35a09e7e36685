// Package juxr wires the stream multiplexer, the TAP converter and the
// suite runner into the operations behind the CLI subcommands.
package juxr

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/cloudbees-oss/juxr/metrics"
	"github.com/cloudbees-oss/juxr/reports"
	"github.com/cloudbees-oss/juxr/streams"
	"github.com/cloudbees-oss/juxr/types"
)

// ImportResult summarizes one import run
type ImportResult struct {
	// Files written under the output directory, in arrival order
	Files []string
	// Suites parsed from report-kind artifacts
	Suites []*types.TestSuite
	// Recoverable protocol and payload errors; the stream was still
	// salvaged around them
	Errs []error
}

// Importer reconstructs artifacts from an inbound log stream into an
// output directory, forwarding all non-protocol content to passthrough.
type Importer struct {
	OutputDir   string
	Transformer *reports.Transformer
	Log         log.Logger
}

// Run decodes the stream. It returns an error only for unrecoverable
// conditions (unusable output directory, stream I/O failure); a stream
// with no artifacts at all is success with an empty result.
func (i *Importer) Run(in io.Reader, passthrough io.Writer) (*ImportResult, error) {
	logger := i.Log
	if logger == nil {
		logger = log.Root()
	}
	if err := os.MkdirAll(i.OutputDir, 0o755); err != nil {
		return nil, NewRuntimeError(fmt.Errorf("could not create output directory %s: %w", i.OutputDir, err))
	}

	result := &ImportResult{}
	decoder := streams.NewDecoder(passthrough, func(needle streams.Needle, payload []byte) error {
		return i.materialize(logger, result, needle, payload)
	}, logger)

	if err := decoder.Run(in); err != nil {
		return nil, NewRuntimeError(err)
	}
	result.Errs = append(result.Errs, decoder.Errs()...)
	for _, err := range result.Errs {
		metrics.RecordError(fmt.Sprintf("%T", err))
	}
	return result, nil
}

func (i *Importer) materialize(logger log.Logger, result *ImportResult, needle streams.Needle, payload []byte) error {
	path, err := i.artifactPath(needle.Name)
	if err != nil {
		result.Errs = append(result.Errs, err)
		logger.Warn("Skipping artifact with unsafe name", "name", needle.Name, "err", err)
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		logger.Warn("Overwriting existing artifact", "path", path)
	}
	if parent := filepath.Dir(path); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("could not create directory %s: %w", parent, err)
		}
	}

	if needle.Kind == streams.KindReport {
		suite, err := reports.Deserialize(payload)
		if err != nil {
			// keep the raw bytes so nothing is lost, but flag the report
			result.Errs = append(result.Errs, fmt.Errorf("report %q: %w", needle.Name, err))
			logger.Warn("Report did not parse, storing raw content", "name", needle.Name, "err", err)
		} else {
			if i.Transformer != nil {
				t := *i.Transformer
				t.AttachmentPrefix = i.OutputDir
				t.Apply(suite)
			}
			result.Suites = append(result.Suites, suite)
			if payload, err = reports.Serialize(suite); err != nil {
				return err
			}
		}
	}

	logger.Debug("Decoding", "path", path, "kind", needle.Kind)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("could not write file %s: %w", path, err)
	}
	result.Files = append(result.Files, path)
	metrics.RecordArtifactImported(needle.Kind)
	return nil
}

// artifactPath maps an artifact name onto the output directory. Leading
// slashes are stripped and the result must stay inside the directory.
func (i *Importer) artifactPath(name string) (string, error) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("artifact name %q escapes the output directory", name)
	}
	return filepath.Join(i.OutputDir, clean), nil
}
