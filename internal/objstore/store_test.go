package objstore

import (
    "context"
    "errors"
    "io"
    "strings"
    "testing"
)

func TestFileMirrorRangeRead(t *testing.T) {
    ctx := context.Background()
    st, err := Open(ctx, Config{Driver: "file", BaseDir: t.TempDir(), Prefix: "/mirror/"})
    if err != nil { t.Fatalf("open: %v", err) }
    defer st.Close()

    if err := st.Put(ctx, "v0.80.0/nwjs-v0.80.0-linux-x64.tar.gz", strings.NewReader("0123456789"), ""); err != nil {
        t.Fatalf("put: %v", err)
    }
    rc, size, err := st.Open(ctx, "v0.80.0/nwjs-v0.80.0-linux-x64.tar.gz", 4)
    if err != nil { t.Fatalf("open key: %v", err) }
    defer rc.Close()
    b, _ := io.ReadAll(rc)
    if size != 10 || string(b) != "456789" {
        t.Fatalf("size=%d body=%q", size, b)
    }

    if _, _, err := st.Open(ctx, "v0.80.0/missing.zip", 0); !errors.Is(err, ErrNotFound) {
        t.Fatalf("expected ErrNotFound, got %v", err)
    }
}

func TestValidateAndSanitize(t *testing.T) {
    if err := Validate(Config{Driver: "oss", Bucket: "b"}); err == nil { t.Fatal("oss without endpoint must fail") }
    if err := Validate(Config{Driver: "ftp"}); err == nil { t.Fatal("unknown driver must fail") }
    if got := sanitizeKey("/../v1/./nw.zip"); got != "v1/nw.zip" { t.Fatalf("sanitize: %q", got) }
    if got := buildS3URL(Config{Bucket: "b", Region: "us-east-1", ForcePathStyle: true}); !strings.Contains(got, "s3ForcePathStyle=true") {
        t.Fatalf("s3 url: %s", got)
    }
}
