package runtimes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cuihairu/arcade/internal/objstore"
)

// DefaultDownloadBase is the upstream archive host.
const DefaultDownloadBase = "https://dl.nwjs.io"

// ErrNotFound reports a missing archive or checksum manifest.
var ErrNotFound = errors.New("runtime artifact not found")

// Fetched is an open artifact stream.
type Fetched struct {
	Body io.ReadCloser
	// Offset is where Body starts; 0 when the source ignored the requested offset.
	Offset int64
	// Total is the full artifact size, or -1 when unknown.
	Total int64
}

// Source serves runtime artifacts by key (v{version}/{name}).
type Source interface {
	Name() string
	Fetch(ctx context.Context, key string, offset int64) (*Fetched, error)
}

// HTTPSource downloads from an HTTP mirror of dl.nwjs.io, resuming with Range.
type HTTPSource struct {
	Base   string
	Client *http.Client
}

func NewHTTPSource(base string, client *http.Client) *HTTPSource {
	if base == "" {
		base = DefaultDownloadBase
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{Base: strings.TrimRight(base, "/"), Client: client}
}

func (s *HTTPSource) Name() string { return "http" }

// URL returns the download URL of key.
func (s *HTTPSource) URL(key string) string { return s.Base + "/" + strings.TrimLeft(key, "/") }

func (s *HTTPSource) Fetch(ctx context.Context, key string, offset int64) (*Fetched, error) {
	f, err := s.get(ctx, key, offset)
	if err == errRangeNotSatisfiable {
		// stale partial file larger than the artifact
		return s.get(ctx, key, 0)
	}
	return f, err
}

var errRangeNotSatisfiable = errors.New("range not satisfiable")

func (s *HTTPSource) get(ctx context.Context, key string, offset int64) (*Fetched, error) {
	u := s.URL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return &Fetched{Body: resp.Body, Offset: 0, Total: resp.ContentLength}, nil
	case http.StatusPartialContent:
		total := int64(-1)
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if i := strings.LastIndexByte(cr, '/'); i >= 0 {
				if n, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
					total = n
				}
			}
		}
		return &Fetched{Body: resp.Body, Offset: offset, Total: total}, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, errRangeNotSatisfiable
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", u, ErrNotFound)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", u, resp.StatusCode)
	}
}

// MirrorSource reads artifacts from object storage laid out like the upstream
// host. With Upstream set, a missing artifact is fetched from Upstream and
// written to the store before it is served.
type MirrorSource struct {
	Store    objstore.Store
	Upstream Source
}

func (m *MirrorSource) Name() string { return "mirror" }

func (m *MirrorSource) Fetch(ctx context.Context, key string, offset int64) (*Fetched, error) {
	rc, size, err := m.Store.Open(ctx, key, offset)
	if errors.Is(err, objstore.ErrNotFound) && m.Upstream != nil {
		if err = m.fill(ctx, key); err != nil {
			return nil, err
		}
		rc, size, err = m.Store.Open(ctx, key, offset)
	}
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			return nil, fmt.Errorf("mirror %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("mirror %s: %w", key, err)
	}
	return &Fetched{Body: rc, Offset: offset, Total: size}, nil
}

func (m *MirrorSource) fill(ctx context.Context, key string) error {
	f, err := m.Upstream.Fetch(ctx, key, 0)
	if err != nil {
		return fmt.Errorf("mirror fill %s: %w", key, err)
	}
	defer f.Body.Close()
	if err := m.Store.Put(ctx, key, f.Body, contentType(key)); err != nil {
		return fmt.Errorf("mirror fill %s: %w", key, err)
	}
	return nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".zip"):
		return "application/zip"
	case strings.HasSuffix(key, ".tar.gz"):
		return "application/gzip"
	}
	return "text/plain"
}
