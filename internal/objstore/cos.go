package objstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

type cosStore struct {
	cli *cos.Client
}

func openCOS(_ context.Context, c Config) (Store, error) {
	// build bucket URL
	var bucketURL *url.URL
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil {
			return nil, err
		}
		// if host not contains bucket, use path-style
		if !strings.Contains(u.Host, c.Bucket) {
			if !strings.HasSuffix(u.Path, "/"+c.Bucket) {
				u.Path = "/" + c.Bucket
			}
		}
		bucketURL = u
	} else {
		u, err := url.Parse(fmt.Sprintf("https://%s.cos.%s.myqcloud.com", c.Bucket, c.Region))
		if err != nil {
			return nil, err
		}
		bucketURL = u
	}
	b := &cos.BaseURL{BucketURL: bucketURL}
	cli := cos.NewClient(b, &http.Client{Transport: &cos.AuthorizationTransport{SecretID: c.AccessKey, SecretKey: c.SecretKey}})
	return &cosStore{cli: cli}, nil
}

func (s *cosStore) Open(ctx context.Context, key string, offset int64) (io.ReadCloser, int64, error) {
	key = sanitizeKey(key)
	head, err := s.cli.Object.Head(ctx, key, nil)
	if err != nil {
		return nil, -1, s.mapErr(key, err)
	}
	size := head.ContentLength
	var opt *cos.ObjectGetOptions
	if offset > 0 {
		opt = &cos.ObjectGetOptions{Range: fmt.Sprintf("bytes=%d-", offset)}
	}
	resp, err := s.cli.Object.Get(ctx, key, opt)
	if err != nil {
		return nil, -1, s.mapErr(key, err)
	}
	return resp.Body, size, nil
}

func (s *cosStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	key = sanitizeKey(key)
	opt := &cos.ObjectPutOptions{}
	if contentType != "" {
		opt.ObjectPutHeaderOptions = &cos.ObjectPutHeaderOptions{ContentType: contentType}
	}
	_, err := s.cli.Object.Put(ctx, key, r, opt)
	return err
}

func (s *cosStore) Close() error { return nil }

func (s *cosStore) mapErr(key string, err error) error {
	if cos.IsNotFoundError(err) {
		return notFound(key, err)
	}
	return err
}
