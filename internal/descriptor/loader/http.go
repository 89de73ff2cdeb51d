package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-semval/pkg/descriptor"
)

// HTTPSource resolves descriptors through the reflection endpoint:
//
//	GET {base}/reflection/{type}             -> Descriptor
//	GET {base}/reflection/{type}?with_deps=1 -> {"items": [Descriptor, ...]}
type HTTPSource struct {
	base    string
	client  *http.Client
	timeout time.Duration
	headers map[string]string
}

// Ensure the implementation satisfies the public interface.
var _ descriptor.Source = (*HTTPSource)(nil)

// NewHTTP constructs an HTTPSource from pre-resolved options.
func NewHTTP(baseURL string, options descriptor.LoaderOptions) (*HTTPSource, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("descriptor loader: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("descriptor loader: invalid base url: %w", err)
	}

	timeout := options.RequestTimeout
	var client *http.Client
	if options.HTTPClient != nil {
		clone := *options.HTTPClient
		if timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		client = &clone
	} else {
		client = &http.Client{Timeout: timeout}
	}

	headers := make(map[string]string, len(options.Headers))
	for key, val := range options.Headers {
		headers[key] = val
	}

	return &HTTPSource{
		base:    base,
		client:  client,
		timeout: timeout,
		headers: headers,
	}, nil
}

// Get fetches a single descriptor.
func (s *HTTPSource) Get(ctx context.Context, name string) (descriptor.Descriptor, error) {
	data, err := s.fetch(ctx, name, false)
	if err != nil {
		return descriptor.Descriptor{}, err
	}
	var desc descriptor.Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return descriptor.Descriptor{}, fmt.Errorf("descriptor loader: decode %q: %w", name, err)
	}
	if desc.Name == "" {
		desc.Name = name
	}
	return desc, nil
}

// GetWithDependencies fetches the descriptor and its transitive references.
func (s *HTTPSource) GetWithDependencies(ctx context.Context, name string) (descriptor.Set, error) {
	data, err := s.fetch(ctx, name, true)
	if err != nil {
		return nil, err
	}
	set, err := DecodeCatalog(data, FormatJSON)
	if err != nil {
		return nil, err
	}
	if _, ok := set[name]; !ok {
		return nil, fmt.Errorf("%w: %q missing from dependency response", descriptor.ErrTypeNotFound, name)
	}
	return set, nil
}

func (s *HTTPSource) fetch(ctx context.Context, name string, withDeps bool) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("descriptor loader: type name is required")
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	endpoint := s.base + "/reflection/" + url.PathEscape(name)
	if withDeps {
		endpoint += "?with_deps=1"
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for key, val := range s.headers {
		req.Header.Set(key, val)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q", descriptor.ErrTypeNotFound, name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("descriptor loader: unexpected status " + resp.Status)
	}

	return io.ReadAll(resp.Body)
}
