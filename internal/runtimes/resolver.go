package runtimes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
)

// DefaultVersionsURL publishes the current stable and latest releases.
const DefaultVersionsURL = "https://nwjs.io/versions.json"

// Resolver looks up the stable NW.js version once per process. Concurrent
// callers share one request.
type Resolver struct {
	url    string
	client *http.Client

	group  singleflight.Group
	mu     sync.Mutex
	stable string
}

func NewResolver(url string, client *http.Client) *Resolver {
	if url == "" {
		url = DefaultVersionsURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{url: url, client: client}
}

// Stable returns the stable version without a leading v, falling back to latest.
func (r *Resolver) Stable(ctx context.Context) (string, error) {
	r.mu.Lock()
	v := r.stable
	r.mu.Unlock()
	if v != "" {
		return v, nil
	}
	res, err, _ := r.group.Do("stable", func() (any, error) {
		v, err := r.fetch(ctx)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.stable = v
		r.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

type versionsDoc struct {
	Stable string `json:"stable"`
	Latest string `json:"latest"`
}

func (r *Resolver) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeDownloadFailed, "build versions request", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeDownloadFailed, "fetch versions.json", err).With("url", r.url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Newf(apperrors.CodeDownloadFailed, "fetch versions.json: status %d", resp.StatusCode).With("url", r.url)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeDownloadFailed, "read versions.json", err)
	}
	var doc versionsDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", apperrors.Wrap(apperrors.CodeDownloadFailed, "parse versions.json", err)
	}
	raw := doc.Stable
	if raw == "" {
		raw = doc.Latest
	}
	v := NormalizeVersion(raw)
	if v == "" {
		return "", apperrors.New(apperrors.CodeDownloadFailed, fmt.Sprintf("versions.json has no stable or latest entry (%s)", r.url))
	}
	return v, nil
}
