package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // decoder registration
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp" // decoder registration

	"github.com/okian/presence/internal/domain/lease"
)

var stillExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".gif": true}

// Directory replays still images from a directory as a camera stream, one
// file per captured frame, in name order.
type Directory struct {
	Path string
}

// Name implements Device.
func (d *Directory) Name() string { return "dir:" + d.Path }

// Open implements Device.
func (d *Directory) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("read %s: %w", d.Path, lease.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("read %s: %w: %w", d.Path, lease.ErrUnavailable, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !stillExt[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(d.Path, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no stills in %s: %w", d.Path, lease.ErrUnavailable)
	}
	sort.Strings(files)

	s := &dirStream{files: files}
	img, err := s.decode(files[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lease.ErrUnavailable, err)
	}
	b := img.Bounds()
	s.size = Resolution{Width: b.Dx(), Height: b.Dy()}
	return s, nil
}

type dirStream struct {
	files []string
	size  Resolution

	mu     sync.Mutex
	next   int
	closed bool
}

func (s *dirStream) Resolution() Resolution { return s.size }

func (s *dirStream) Latest() (image.Image, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("directory stream closed: %w", lease.ErrUnavailable)
	}
	path := s.files[s.next%len(s.files)]
	s.next++
	s.mu.Unlock()
	return s.decode(path)
}

func (s *dirStream) decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (s *dirStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
