package formatter

import (
	"encoding/json"
	"fmt"

	"github.com/alevsk/gwbundle/internal/types"
	"gopkg.in/yaml.v3"
)

// Formatter defines the interface for formatting data
type Formatter interface {
	Format(data types.Result) (string, error)
}

// Options controls what the formatters include
type Options struct {
	// IncludeMetadata adds version, source and timestamp information
	IncludeMetadata bool
	// IncludeEntities lists every entity next to the per type counts
	IncludeEntities bool
}

// DefaultOptions returns the default formatter options
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		IncludeEntities: true,
	}
}

// ParseType converts a string to a Type
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeJSON, TypeYAML, TypeTable, TypeMarkdown:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown formatter type: %s", s)
	}
}

// NewFormatter creates a new formatter of the specified type
func NewFormatter(t Type, opts *Options) (Formatter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch t {
	case TypeJSON:
		return &JSON{opts: opts}, nil
	case TypeYAML:
		return &YAML{opts: opts}, nil
	case TypeTable:
		return &Table{opts: opts}, nil
	case TypeMarkdown:
		return &Markdown{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", t)
	}
}

// Format formats data as JSON
func (j *JSON) Format(data types.Result) (string, error) {
	bytes, err := json.MarshalIndent(parse(data, j.opts), "", "  ")
	if err != nil {
		return "", fmt.Errorf("error formatting as JSON: %w", err)
	}
	return string(bytes), nil
}

// Format formats data as YAML
func (y *YAML) Format(data types.Result) (string, error) {
	bytes, err := yaml.Marshal(parse(data, y.opts))
	if err != nil {
		return "", fmt.Errorf("error formatting as YAML: %w", err)
	}
	return string(bytes), nil
}

// parse selects the parts of a result the options ask for
func parse(data types.Result, opts *Options) ParsedData {
	out := ParsedData{
		Counts:   data.Counts,
		Total:    data.Total(),
		Files:    data.Files,
		Warnings: data.Warnings,
	}
	if out.Counts == nil {
		out.Counts = []types.TypeCount{}
	}
	if opts.IncludeMetadata {
		out.Metadata = &Metadata{
			Version:    data.Version,
			Operation:  data.Operation,
			Source:     data.Source,
			Target:     data.Target,
			BundleType: data.BundleType,
			Timestamp:  data.Timestamp,
			Extra:      data.Extra,
		}
	}
	if opts.IncludeEntities {
		out.Entities = data.Entities
	}
	return out
}
