package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// defaultHTTPClient is the client used when Options carry none
var defaultHTTPClient = &http.Client{
	Timeout: defaultHTTPTimeout,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("too many redirects")
		}
		return nil
	},
}

// Default timeout for HTTP requests
const defaultHTTPTimeout = 30 * time.Second

// RemoteXMLResolver implements SourceResolver for bundles served over HTTP/HTTPS
type RemoteXMLResolver struct {
	source  string
	client  *http.Client
	baseURL *url.URL
}

// NewRemoteXMLResolver creates a new RemoteXMLResolver
func NewRemoteXMLResolver(source string, opts *Options) (*RemoteXMLResolver, error) {
	if !isValidURL(source) {
		return nil, fmt.Errorf("invalid URL: %s", source)
	}

	baseURL, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	return &RemoteXMLResolver{
		source:  source,
		client:  opts.client(),
		baseURL: baseURL,
	}, nil
}

// CanResolve checks if this resolver can handle the given source
func (r *RemoteXMLResolver) CanResolve(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return hasXMLExt(u.Path)
}

// Resolve fetches the bundle and returns a reader for its contents
func (r *RemoteXMLResolver) Resolve(ctx context.Context) (io.ReadCloser, *ResolverMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/xml,text/xml")
	req.Header.Set("User-Agent", "gwbundle/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("HTTP request failed with status: %s", resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if !looksLikeXML(content) {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidFormat, r.source)
	}

	return io.NopCloser(bytes.NewReader(content)), &ResolverMetadata{
		Type:    SourceTypeRemote,
		Path:    r.source,
		Size:    int64(len(content)),
		ModTime: time.Now().Unix(),
		Extra: map[string]interface{}{
			"host":        r.baseURL.Host,
			"contentType": resp.Header.Get("Content-Type"),
		},
	}, nil
}
