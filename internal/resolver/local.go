package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// LocalXMLResolver implements SourceResolver for bundle files on disk
type LocalXMLResolver struct {
	source string
	fs     afero.Fs
}

// NewLocalXMLResolver creates a new LocalXMLResolver
func NewLocalXMLResolver(source string, opts *Options) *LocalXMLResolver {
	return &LocalXMLResolver{
		source: source,
		fs:     opts.fs(),
	}
}

// CanResolve checks if this resolver can handle the given source
func (r *LocalXMLResolver) CanResolve(source string) bool {
	info, err := r.fs.Stat(source)
	if err != nil || info.IsDir() {
		return false
	}
	return hasXMLExt(source)
}

// Resolve reads the bundle file and returns a reader for its contents
func (r *LocalXMLResolver) Resolve(ctx context.Context) (io.ReadCloser, *ResolverMetadata, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	info, err := r.fs.Stat(r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("not a regular file: %s", r.source)
	}

	content, err := afero.ReadFile(r.fs, r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !looksLikeXML(content) {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidFormat, r.source)
	}

	return io.NopCloser(bytes.NewReader(content)), &ResolverMetadata{
		Type:    SourceTypeFile,
		Path:    r.source,
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
	}, nil
}
