package objstore

import (
    "context"
    "io"

    "gocloud.dev/blob"
    "gocloud.dev/blob/fileblob"
    _ "gocloud.dev/blob/s3blob"
    "gocloud.dev/gcerrors"
)

// blobStore serves the s3 and file drivers through gocloud.
type blobStore struct{ bk *blob.Bucket }

func openS3(ctx context.Context, c Config) (Store, error) {
    bk, err := blob.OpenBucket(ctx, buildS3URL(c))
    if err != nil { return nil, err }
    return &blobStore{bk: bk}, nil
}

func openFile(_ context.Context, c Config) (Store, error) {
    if err := ensureDir(c.BaseDir); err != nil { return nil, err }
    bk, err := fileblob.OpenBucket(c.BaseDir, &fileblob.Options{CreateDir: true})
    if err != nil { return nil, err }
    return &blobStore{bk: bk}, nil
}

func (s *blobStore) Open(ctx context.Context, key string, offset int64) (io.ReadCloser, int64, error) {
    key = sanitizeKey(key)
    r, err := s.bk.NewRangeReader(ctx, key, offset, -1, nil)
    if err != nil {
        if gcerrors.Code(err) == gcerrors.NotFound { return nil, -1, notFound(key, err) }
        return nil, -1, err
    }
    return r, r.Size(), nil
}

func (s *blobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
    key = sanitizeKey(key)
    // cancelling the writer's context before Close discards a partial object
    wctx, cancel := context.WithCancel(ctx)
    defer cancel()
    w, err := s.bk.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType})
    if err != nil { return err }
    if _, err := io.Copy(w, r); err != nil {
        cancel()
        _ = w.Close()
        return err
    }
    return w.Close()
}

func (s *blobStore) Close() error { return s.bk.Close() }
