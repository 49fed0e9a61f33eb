// Package loader reads state documents into values.
//
// A state document is a JSON, YAML or CUE file whose (concrete) content
// becomes a store's initial state or a registry snapshot. The format is
// chosen by file extension unless given explicitly.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/IniZio/reim/internal/value"
)

// Format identifies a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// ErrUnknownFormat is returned for an extension or format name that is
// not supported.
var ErrUnknownFormat = errors.New("loader: unknown document format")

// Options tunes Load and Parse.
type Options struct {
	// Format overrides detection by extension.
	Format Format

	// Path selects a nested member ("stores.cart") instead of the whole
	// document.
	Path string
}

// ParseError reports a document that could not be decoded.
type ParseError struct {
	Source string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("parse %s %s: %v", e.Format, e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseFormat resolves a format name; "yml" is accepted for YAML.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// FormatFromPath detects the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// Load reads and parses the document at path.
func Load(path string, opts Options) (value.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state document: %w", err)
	}

	if opts.Format == "" {
		if opts.Format, err = FormatFromPath(path); err != nil {
			return nil, err
		}
	}
	return parse(data, path, opts)
}

// Parse decodes data. opts.Format is required.
func Parse(data []byte, opts Options) (value.Value, error) {
	return parse(data, "", opts)
}

func parse(data []byte, source string, opts Options) (value.Value, error) {
	var (
		v   value.Value
		err error
	)

	switch opts.Format {
	case FormatJSON:
		v, err = value.Unmarshal(data)
		if err == nil {
			v, err = Select(v, opts.Path)
		}
	case FormatYAML:
		v, err = parseYAML(data)
		if err == nil {
			v, err = Select(v, opts.Path)
		}
	case FormatCUE:
		// CUE selects before export so that incomplete siblings of the
		// selected member do not fail the document.
		v, err = parseCUE(data, source, opts.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	if err != nil {
		return nil, &ParseError{Source: source, Format: opts.Format, Err: err}
	}
	return v, nil
}

// Select walks a dotted member path through nested objects. An empty
// path returns v.
func Select(v value.Value, path string) (value.Value, error) {
	if path == "" {
		return v, nil
	}

	cur := v
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(value.Object)
		if !ok {
			return nil, fmt.Errorf("path %q: %q is not an object member", path, seg)
		}
		next, ok := obj[seg]
		if !ok {
			return nil, fmt.Errorf("path %q: member %q not found", path, seg)
		}
		cur = next
	}
	return cur, nil
}
