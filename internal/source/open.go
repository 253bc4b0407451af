package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// Stdin is the input name that reads standard input.
const Stdin = "-"

// BucketOpener opens a gocloud bucket from a URL.
type BucketOpener func(ctx context.Context, bucketURL string) (*blob.Bucket, error)

// Opener resolves input names to readers.
type Opener struct {
	openBucket BucketOpener
	stdin      io.Reader
}

// NewOpener returns an Opener backed by gocloud's registered bucket drivers.
func NewOpener() *Opener {
	return &Opener{openBucket: blob.OpenBucket, stdin: os.Stdin}
}

// WithBucketOpener replaces how buckets are opened.
func (o *Opener) WithBucketOpener(fn BucketOpener) *Opener {
	o.openBucket = fn
	return o
}

// WithStdin replaces the reader used for "-".
func (o *Opener) WithStdin(r io.Reader) *Opener {
	o.stdin = r
	return o
}

// Open is NewOpener().Open.
func Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return NewOpener().Open(ctx, name)
}

// Open returns a reader over the decompressed content of name. The caller must
// close it.
func (o *Opener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" {
		return nil, fmt.Errorf("input name is empty")
	}
	if name == Stdin {
		return io.NopCloser(o.stdin), nil
	}

	raw, key, err := o.openRaw(ctx, name)
	if err != nil {
		return nil, err
	}

	rc, err := decompress(raw, key)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return rc, nil
}

func (o *Opener) openRaw(ctx context.Context, name string) (io.ReadCloser, string, error) {
	u, err := url.Parse(name)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		f, err := os.Open(name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open input: %w", err)
		}
		return f, name, nil
	}

	bucketURL, key, err := splitObjectURL(u)
	if err != nil {
		return nil, "", err
	}

	bucket, err := o.openBucket(ctx, bucketURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open bucket %s: %w", bucketURL, err)
	}
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		bucket.Close()
		return nil, "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return &closerChain{Reader: r, closers: []io.Closer{r, bucket}}, key, nil
}

// splitObjectURL turns scheme://bucket/key?query into a bucket URL and key.
// For file:// the bucket is the parent directory.
func splitObjectURL(u *url.URL) (bucketURL, key string, err error) {
	switch u.Scheme {
	case "file":
		p := u.Path
		if p == "" {
			return "", "", fmt.Errorf("file URL %q has no path", u.String())
		}
		dir, base := path.Split(p)
		b := url.URL{Scheme: "file", Path: dir, RawQuery: u.RawQuery}
		return b.String(), base, nil
	case "s3", "gs", "mem":
		key = strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return "", "", fmt.Errorf("object URL %q must be %s://bucket/key", u.String(), u.Scheme)
		}
		b := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
		return b.String(), key, nil
	default:
		return "", "", fmt.Errorf("unsupported input scheme %q", u.Scheme)
	}
}

func decompress(r io.ReadCloser, name string) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		return &closerChain{Reader: dec, closers: []io.Closer{zstdCloser{dec}, r}}, nil
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return &closerChain{Reader: gz, closers: []io.Closer{gz, r}}, nil
	default:
		return r, nil
	}
}

// closerChain reads from Reader and closes every closer in order.
type closerChain struct {
	io.Reader
	closers []io.Closer
}

func (c *closerChain) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type zstdCloser struct{ dec *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.dec.Close()
	return nil
}
