package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	oss "github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type ossStore struct {
	bk *oss.Bucket
}

func openOSS(_ context.Context, c Config) (Store, error) {
	cli, err := oss.New(c.Endpoint, c.AccessKey, c.SecretKey)
	if err != nil {
		return nil, err
	}
	bk, err := cli.Bucket(c.Bucket)
	if err != nil {
		return nil, err
	}
	return &ossStore{bk: bk}, nil
}

func (s *ossStore) Open(_ context.Context, key string, offset int64) (io.ReadCloser, int64, error) {
	key = sanitizeKey(key)
	meta, err := s.bk.GetObjectDetailedMeta(key)
	if err != nil {
		return nil, -1, s.mapErr(key, err)
	}
	size := int64(-1)
	if v, err := strconv.ParseInt(meta.Get("Content-Length"), 10, 64); err == nil {
		size = v
	}
	var opts []oss.Option
	if offset > 0 {
		opts = append(opts, oss.NormalizedRange(fmt.Sprintf("%d-", offset)))
	}
	rc, err := s.bk.GetObject(key, opts...)
	if err != nil {
		return nil, -1, s.mapErr(key, err)
	}
	return rc, size, nil
}

func (s *ossStore) Put(_ context.Context, key string, r io.Reader, contentType string) error {
	key = sanitizeKey(key)
	opts := []oss.Option{}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	return s.bk.PutObject(key, r, opts...)
}

func (s *ossStore) Close() error { return nil }

func (s *ossStore) mapErr(key string, err error) error {
	var se oss.ServiceError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return notFound(key, err)
	}
	return err
}
