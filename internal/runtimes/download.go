package runtimes

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const chunkSize = 32 << 10

// download fetches key into partPath, resuming from an existing partial file.
// progress is called after every chunk with the chunk size, the bytes on disk
// and the total (-1 when unknown). It returns the final size.
func download(ctx context.Context, src Source, key, partPath string, progress func(n, done, total int64)) (int64, error) {
	var offset int64
	if fi, err := os.Stat(partPath); err == nil && fi.Mode().IsRegular() {
		offset = fi.Size()
	}
	f, err := src.Fetch(ctx, key, offset)
	if err != nil {
		return 0, err
	}
	defer f.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if f.Offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(partPath, flags, 0o644)
	if err != nil {
		return 0, err
	}
	done := f.Offset
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return done, err
		}
		n, rerr := f.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return done, werr
			}
			done += int64(n)
			if progress != nil {
				progress(int64(n), done, f.Total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return done, rerr
		}
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return done, err
	}
	if err := out.Close(); err != nil {
		return done, err
	}
	if f.Total >= 0 && done != f.Total {
		return done, fmt.Errorf("size mismatch: got %d bytes, want %d", done, f.Total)
	}
	return done, nil
}

// parseChecksums reads a sha256sum-style manifest ("<hex>  <name>").
func parseChecksums(r io.Reader) map[string]string {
	out := map[string]string{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimPrefix(fields[len(fields)-1], "*")
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		out[name] = strings.ToLower(fields[0])
	}
	return out
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
