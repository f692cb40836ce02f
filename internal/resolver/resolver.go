package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrEmptySource is returned when no source is given
	ErrEmptySource = errors.New("empty source")
	// ErrUnsupportedSource is returned when no resolver handles a source
	ErrUnsupportedSource = errors.New("no suitable resolver found for source")
	// ErrInvalidFormat is returned when a source does not hold an XML document
	ErrInvalidFormat = errors.New("source is not an XML document")
)

// SourceResolver defines the interface that all source resolvers must implement
type SourceResolver interface {
	// CanResolve checks if this resolver can handle the given source
	CanResolve(source string) bool

	// Resolve returns a reader for the bundle document of the source
	Resolve(ctx context.Context) (io.ReadCloser, *ResolverMetadata, error)
}

// Options configures how sources are resolved
type Options struct {
	// Fs is the filesystem local sources are read from
	Fs afero.Fs
	// HTTPClient fetches remote sources
	HTTPClient *http.Client
}

func (o *Options) fs() afero.Fs {
	if o == nil || o.Fs == nil {
		return afero.NewOsFs()
	}
	return o.Fs
}

func (o *Options) client() *http.Client {
	if o == nil || o.HTTPClient == nil {
		return defaultHTTPClient
	}
	return o.HTTPClient
}

// ResolverFactory creates the appropriate resolver for a given source
func ResolverFactory(source string, opts *Options) (SourceResolver, error) {
	if source == "" {
		return nil, ErrEmptySource
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		r, err := NewRemoteXMLResolver(source, opts)
		if err != nil {
			return nil, err
		}
		if !r.CanResolve(source) {
			return nil, fmt.Errorf("%w: URL does not point to an XML file: %s", ErrUnsupportedSource, source)
		}
		return r, nil
	}

	r := NewLocalXMLResolver(source, opts)
	if r.CanResolve(source) {
		return r, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
}

func hasXMLExt(p string) bool {
	return strings.EqualFold(path.Ext(p), ".xml")
}

// isValidURL checks if a string is a valid URL
func isValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// looksLikeXML checks that content starts with markup
func looksLikeXML(content []byte) bool {
	trimmed := strings.TrimSpace(strings.TrimPrefix(string(content), "\ufeff"))
	return strings.HasPrefix(trimmed, "<")
}
