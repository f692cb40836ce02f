package resolver

// SourceType represents the type of source being resolved
type SourceType int

const (
	// SourceTypeUnknown represents an unknown source type
	SourceTypeUnknown SourceType = iota
	// SourceTypeFile represents a bundle file on disk
	SourceTypeFile
	// SourceTypeRemote represents a bundle served over HTTP/HTTPS
	SourceTypeRemote
)

// String returns the string representation of a SourceType
func (st SourceType) String() string {
	switch st {
	case SourceTypeFile:
		return "file"
	case SourceTypeRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ResolverMetadata contains information about the resolved source
type ResolverMetadata struct {
	// Type is the source type (file, remote)
	Type SourceType
	// Path is the path or URL of the source
	Path string
	// Size is the size of the source in bytes
	Size int64
	// ModTime is the last modification time of the source as a Unix timestamp
	ModTime int64
	// Extra contains additional metadata specific to the source type
	Extra map[string]interface{}
}
