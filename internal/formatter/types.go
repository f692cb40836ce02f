package formatter

import "github.com/alevsk/gwbundle/internal/types"

// Type represents the type of formatter
type Type string

const (
	// TypeJSON formats data as JSON
	TypeJSON Type = "json"
	// TypeYAML formats data as YAML
	TypeYAML Type = "yaml"
	// TypeTable formats data as a table
	TypeTable Type = "table"
	// TypeMarkdown formats data as markdown
	TypeMarkdown Type = "markdown"
)

// JSON implements JSON formatting
type JSON struct {
	opts *Options
}

// YAML implements YAML formatting
type YAML struct {
	opts *Options
}

// Table implements table formatting
type Table struct {
	opts *Options
}

// Markdown implements markdown formatting
type Markdown struct {
	opts *Options
}

type Metadata struct {
	Version    string          `json:"version" yaml:"version"`
	Operation  types.Operation `json:"operation" yaml:"operation"`
	Source     string          `json:"source" yaml:"source"`
	Target     string          `json:"target,omitempty" yaml:"target,omitempty"`
	BundleType string          `json:"bundleType,omitempty" yaml:"bundleType,omitempty"`
	Timestamp  int64           `json:"timestamp" yaml:"timestamp"`
	Extra      map[string]any  `json:"extra,omitempty" yaml:"extra,omitempty"`
}

type ParsedData struct {
	Metadata *Metadata         `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Counts   []types.TypeCount `json:"counts" yaml:"counts"`
	Total    int               `json:"total" yaml:"total"`
	Entities []types.Entity    `json:"entities,omitempty" yaml:"entities,omitempty"`
	Files    []string          `json:"files,omitempty" yaml:"files,omitempty"`
	Warnings []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
