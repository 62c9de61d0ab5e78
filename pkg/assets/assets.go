// Package assets fetches the model and environment map, from disk or over
// HTTP, reporting progress as bytes arrive.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taigrr/helmet/pkg/models"
	"github.com/taigrr/helmet/pkg/render"
)

const (
	DefaultModel       = "./DamagedHelmet.gltf"
	DefaultEnvironment = "https://dl.polyhaven.org/file/ph-assets/HDRIs/hdr/1k/moonless_golf_1k.hdr"
)

// Progress receives a completion fraction in [0,1]. When the total size is
// unknown it is called with -1 as data arrives.
type Progress func(fraction float64)

// Client is the HTTP client used for remote sources.
var Client = &http.Client{Timeout: 2 * time.Minute}

// IsRemote reports whether src is an http(s) URL.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Open opens src for reading. Remote sources honour ctx. size is -1 when
// the length is not known up front.
func Open(ctx context.Context, src string) (rc io.ReadCloser, size int64, err error) {
	if src == "" {
		return nil, 0, errors.New("empty source")
	}
	if IsRemote(src) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("build request: %w", err)
		}
		resp, err := Client.Do(req)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch %s: %w", src, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, 0, fmt.Errorf("fetch %s: %s", src, resp.Status)
		}
		return resp.Body, resp.ContentLength, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// ProgressReader wraps a reader and reports how much of it has been read.
type ProgressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress Progress
}

// NewProgressReader reports progress against total bytes; total <= 0 means
// unknown.
func NewProgressReader(r io.Reader, total int64, fn Progress) *ProgressReader {
	return &ProgressReader{r: r, total: total, progress: fn}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.progress != nil && (n > 0 || err == io.EOF) {
		p.progress(p.Fraction())
	}
	return n, err
}

// Fraction returns the portion read so far, or -1 if the total is unknown.
func (p *ProgressReader) Fraction() float64 {
	if p.total <= 0 {
		return -1
	}
	return min(float64(p.read)/float64(p.total), 1)
}

// BytesRead returns the number of bytes read so far.
func (p *ProgressReader) BytesRead() int64 { return p.read }

// LoadEnvironment reads an equirectangular environment map from src.
func LoadEnvironment(ctx context.Context, src string, fn Progress) (*render.Environment, error) {
	rc, size, err := Open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	env, err := render.LoadEnvironment(NewProgressReader(rc, size, fn))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	return env, nil
}

// LoadModel reads a .gltf or .glb model. Remote models are downloaded to a
// temporary directory first; a .gltf fetched this way must embed its
// buffers and images since sibling files are not fetched.
func LoadModel(ctx context.Context, src string, loader *models.GLTFLoader, fn Progress) (*models.Model, error) {
	if loader == nil {
		loader = models.NewGLTFLoader()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !IsRemote(src) {
		report := loader.Progress
		if fn != nil {
			loader.Progress = func(done, total int) {
				if report != nil {
					report(done, total)
				}
				if total > 0 {
					fn(float64(done) / float64(total))
				}
			}
			defer func() { loader.Progress = report }()
		}
		return loader.LoadContext(ctx, src)
	}

	path, cleanup, err := download(ctx, src, fn)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return loader.LoadContext(ctx, path)
}

func download(ctx context.Context, src string, fn Progress) (path string, cleanup func(), err error) {
	rc, size, err := Open(ctx, src)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	dir, err := os.MkdirTemp("", "helmet-*")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { os.RemoveAll(dir) }

	name := filepath.Base(strings.SplitN(src, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "model.glb"
	}
	path = filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(f, NewProgressReader(rc, size, fn)); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("download %s: %w", src, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
