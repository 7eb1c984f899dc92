// Package modfile reads and writes module metadata documents. It is the
// storage side of the weaver: the engine never touches files itself.
package modfile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"varweave/internal/logging"
	"varweave/internal/metadata"
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for paths without a recognised extension.
var ErrUnknownFormat = errors.New("unknown module document format")

// FormatOf picks the encoding from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Load reads and validates a module document.
func Load(path string) (*metadata.Module, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open module: %w", err)
	}
	defer f.Close()

	m, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	logging.Get(logging.CategoryModfile).Debug("module loaded",
		zap.String("path", path),
		zap.String("module", m.Name),
		zap.Int("top_level_types", len(m.Types)))
	return m, nil
}

// Decode parses a document. Unknown fields are rejected.
func Decode(r io.Reader, format Format) (*metadata.Module, error) {
	var doc document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty module document")
			}
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return fromDocument(doc)
}

// Encode writes m in the given format.
func Encode(w io.Writer, m *metadata.Module, format Format) error {
	doc := toDocument(m)
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Save writes m to path atomically: a temp file in the same directory is
// renamed over the target.
func Save(path string, m *metadata.Module) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, m, format); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write module: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write module: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	logging.Get(logging.CategoryModfile).Debug("module saved",
		zap.String("path", path),
		zap.Int("bytes", buf.Len()))
	return nil
}

// Digest hashes the canonical JSON form of m with its signature cleared,
// so signing a module does not change its digest.
func Digest(m *metadata.Module) ([]byte, error) {
	doc := toDocument(m)
	doc.Signature = ""
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode module for digest: %w", err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// Loaded pairs a path with its module.
type Loaded struct {
	Path   string
	Module *metadata.Module
}

// LoadAll loads several documents concurrently, preserving input order.
// The first failure cancels the remaining loads.
func LoadAll(ctx context.Context, paths []string) ([]Loaded, error) {
	out := make([]Loaded, len(paths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())

	for i, p := range paths {
		i, p := i, p
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			m, err := Load(p)
			if err != nil {
				return err
			}
			out[i] = Loaded{Path: p, Module: m}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
