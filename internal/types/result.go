package types

// Operation names what produced a Result
type Operation string

const (
	// OperationBuild assembles a bundle from a source tree
	OperationBuild Operation = "build"
	// OperationExplode writes a bundle out as a source tree
	OperationExplode Operation = "explode"
	// OperationSummary lists the entities an explode would select
	OperationSummary Operation = "summary"
)

// Entity is one entity of a built or exploded bundle
type Entity struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
	// Path is the root relative file of policies and services
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Action is the import mapping action of built entities
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
	// MappingOnly marks entities that must already exist on the gateway
	MappingOnly bool `json:"mappingOnly,omitempty" yaml:"mappingOnly,omitempty"`
}

// TypeCount is the number of entities of one type
type TypeCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
}

// Result represents a unified result type for all operations
type Result struct {
	// Basic information
	Version   string    `json:"version" yaml:"version"`
	Operation Operation `json:"operation" yaml:"operation"`
	Source    string    `json:"source" yaml:"source"`
	Target    string    `json:"target,omitempty" yaml:"target,omitempty"`
	// BundleType is set for builds
	BundleType string `json:"bundleType,omitempty" yaml:"bundleType,omitempty"`
	Success    bool   `json:"success" yaml:"success"`
	Error      error  `json:"-" yaml:"-"`
	Timestamp  int64  `json:"timestamp" yaml:"timestamp"`

	Counts   []TypeCount `json:"counts" yaml:"counts"`
	Entities []Entity    `json:"entities" yaml:"entities"`
	// Files are the files written by an explode
	Files    []string `json:"files,omitempty" yaml:"files,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Document is the serialized bundle of a build
	Document string `json:"-" yaml:"-"`
	// Formatted output
	OutputFormatted string `json:"-" yaml:"-"`

	// Additional data
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Total returns the number of entities across all types
func (r *Result) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c.Count
	}
	return n
}

// CountEntities fills Counts from Entities, keeping the first-seen order of
// types
func (r *Result) CountEntities() {
	r.Counts = nil
	index := make(map[string]int)
	for _, e := range r.Entities {
		i, ok := index[e.Type]
		if !ok {
			i = len(r.Counts)
			index[e.Type] = i
			r.Counts = append(r.Counts, TypeCount{Type: e.Type})
		}
		r.Counts[i].Count++
	}
}
