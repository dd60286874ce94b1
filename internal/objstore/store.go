// Package objstore reads runtime archives from an object-storage mirror.
// Keys use the same layout as the upstream download site: v{version}/{archive}.
package objstore

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net/url"
    "os"
    "path/filepath"
    "strings"
)

// ErrNotFound is returned (wrapped) when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is the subset of a bucket the runtime mirror needs.
type Store interface {
    // Open streams key starting at offset. size is the full object size, or -1.
    Open(ctx context.Context, key string, offset int64) (rc io.ReadCloser, size int64, err error)
    Put(ctx context.Context, key string, r io.Reader, contentType string) error
    Close() error
}

type Config struct {
    Driver         string `mapstructure:"driver"`
    Bucket         string `mapstructure:"bucket"`
    Region         string `mapstructure:"region"`
    Endpoint       string `mapstructure:"endpoint"`
    AccessKey      string `mapstructure:"access_key"`
    SecretKey      string `mapstructure:"secret_key"`
    ForcePathStyle bool   `mapstructure:"force_path_style"`
    BaseDir        string `mapstructure:"base_dir"`
    Prefix         string `mapstructure:"prefix"`
}

// Enabled reports whether a mirror driver is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Driver) != "" }

func Validate(c Config) error {
    switch strings.ToLower(c.Driver) {
    case "s3":
        if c.Bucket == "" { return errors.New("bucket required for s3 driver") }
        // credentials via env (AWS_ACCESS_KEY_ID/SECRET) or IAM; we don't enforce here
    case "oss":
        if c.Bucket == "" { return errors.New("bucket required for oss driver") }
        if c.Endpoint == "" { return errors.New("endpoint required for oss driver") }
        if c.AccessKey == "" || c.SecretKey == "" { return errors.New("access_key/secret_key required for oss driver") }
    case "cos":
        if c.Bucket == "" { return errors.New("bucket required for cos driver") }
        if c.Region == "" && c.Endpoint == "" { return errors.New("region or endpoint required for cos driver") }
        if c.AccessKey == "" || c.SecretKey == "" { return errors.New("access_key/secret_key required for cos driver") }
    case "file":
        if c.BaseDir == "" { return errors.New("base_dir required for file driver") }
    case "":
        return errors.New("mirror driver not set")
    default:
        return fmt.Errorf("unknown mirror driver: %s", c.Driver)
    }
    return nil
}

// Open validates c and connects to the configured driver.
func Open(ctx context.Context, c Config) (Store, error) {
    if err := Validate(c); err != nil { return nil, err }
    var (
        st  Store
        err error
    )
    switch strings.ToLower(c.Driver) {
    case "s3":
        st, err = openS3(ctx, c)
    case "file":
        st, err = openFile(ctx, c)
    case "oss":
        st, err = openOSS(ctx, c)
    case "cos":
        st, err = openCOS(ctx, c)
    }
    if err != nil { return nil, fmt.Errorf("open %s mirror: %w", c.Driver, err) }
    if p := sanitizeKey(c.Prefix); p != "" { st = &prefixed{Store: st, prefix: p + "/"} }
    return st, nil
}

type prefixed struct {
    Store
    prefix string
}

func (p *prefixed) Open(ctx context.Context, key string, offset int64) (io.ReadCloser, int64, error) {
    return p.Store.Open(ctx, p.prefix+sanitizeKey(key), offset)
}

func (p *prefixed) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
    return p.Store.Put(ctx, p.prefix+sanitizeKey(key), r, contentType)
}

// sanitizeKey prevents path traversal.
func sanitizeKey(key string) string {
    key = filepath.ToSlash(key)
    key = strings.TrimLeft(key, "/")
    parts := strings.Split(key, "/")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if p == "" || p == "." || p == ".." { continue }
        out = append(out, p)
    }
    return strings.Join(out, "/")
}

// buildS3URL constructs a gocloud s3 URL with query params.
func buildS3URL(c Config) string {
    u := url.URL{Scheme: "s3", Host: c.Bucket}
    q := url.Values{}
    if c.Region != "" { q.Set("region", c.Region) }
    if c.Endpoint != "" { q.Set("endpoint", c.Endpoint) }
    if c.ForcePathStyle { q.Set("s3ForcePathStyle", "true") }
    u.RawQuery = q.Encode()
    return u.String()
}

func notFound(key string, err error) error {
    return fmt.Errorf("%s: %w (%v)", key, ErrNotFound, err)
}

func ensureDir(dir string) error { return os.MkdirAll(dir, 0o755) }
