package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/scanpos/internal/images"
)

var frameExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

// DirProvider treats a directory as a camera: the newest image in it is the
// current frame. Tools such as a webcam snapshot loop can write into it.
// Without a directory only FacingAny can be acquired, and the handle never
// produces frames; this lets a fallback decoder with its own device run.
type DirProvider struct {
	Dir string
}

func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{Dir: dir}
}

func (p *DirProvider) Acquire(ctx context.Context, facing Facing) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Dir == "" {
		if facing == FacingAny {
			return &dirHandle{}, nil
		}
		return nil, errors.New("no frames directory configured")
	}

	info, err := os.Stat(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open frames directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frames path %s is not a directory", p.Dir)
	}

	slog.Debug("Acquired frame directory", "dir", p.Dir, "facing", facing)
	return &dirHandle{dir: p.Dir}, nil
}

func (p *DirProvider) Release(h Handle) error {
	dh, ok := h.(*dirHandle)
	if !ok {
		return fmt.Errorf("handle %T was not acquired from a DirProvider", h)
	}
	dh.mu.Lock()
	defer dh.mu.Unlock()
	dh.released = true
	return nil
}

type dirHandle struct {
	dir string

	mu       sync.Mutex
	released bool
	lastPath string
	lastMod  time.Time
}

// Frame returns the newest image, or ErrNoFrame when nothing new arrived
func (h *dirHandle) Frame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return Frame{}, ErrDeviceLost
	}
	if h.dir == "" {
		return Frame{}, ErrNoFrame
	}

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrDeviceLost, err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(frameExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(h.dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" || (newest == h.lastPath && newestMod.Equal(h.lastMod)) {
		return Frame{}, ErrNoFrame
	}

	data, err := os.ReadFile(newest)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}
	img, err := images.FromBytes(data)
	if err != nil {
		return Frame{}, err
	}

	h.lastPath = newest
	h.lastMod = newestMod
	return Frame{Image: img, CapturedAt: newestMod, Source: newest}, nil
}
