package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ErrEmptyRead marks a blank line from the scanner
var ErrEmptyRead = errors.New("empty read")

// WedgeLibrary decodes codes from a keyboard-wedge or serial barcode
// scanner that writes one code per line to a device file or FIFO.
type WedgeLibrary struct {
	open func() (io.ReadCloser, error)

	mu     sync.Mutex
	reader io.ReadCloser
}

func NewWedgeLibrary(path string) *WedgeLibrary {
	return NewWedgeLibraryFunc(func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// NewWedgeLibraryFunc reads lines from whatever open returns
func NewWedgeLibraryFunc(open func() (io.ReadCloser, error)) *WedgeLibrary {
	return &WedgeLibrary{open: open}
}

// DecodeContinuously reports each line until ctx is done or the device
// closes. The capture handle is unused; the scanner is its own device.
func (w *WedgeLibrary) DecodeContinuously(ctx context.Context, _ Handle, onResult func(DecodeResult)) error {
	r, err := w.openDevice(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDeviceLost, err)
	}
	w.mu.Lock()
	w.reader = r
	w.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { r.Close() })
	defer stop()
	defer w.Reset()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			onResult(DecodeResult{Err: ErrEmptyRead})
			continue
		}
		onResult(DecodeResult{Text: line, Format: GTINFormat(line)})
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceLost, err)
	}
	slog.Debug("Wedge device closed")
	return fmt.Errorf("%w: device closed", ErrDeviceLost)
}

type openResult struct {
	r   io.ReadCloser
	err error
}

// openDevice runs open until it returns or ctx is done. Opening a FIFO
// blocks until a writer appears; an open abandoned on cancellation closes
// the device when it eventually completes.
func (w *WedgeLibrary) openDevice(ctx context.Context) (io.ReadCloser, error) {
	opened := make(chan openResult, 1)
	go func() {
		r, err := w.open()
		opened <- openResult{r: r, err: err}
	}()

	select {
	case res := <-opened:
		return res.r, res.err
	case <-ctx.Done():
		go func() {
			if res := <-opened; res.r != nil {
				res.r.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Reset closes the device if it is open
func (w *WedgeLibrary) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reader != nil {
		w.reader.Close()
		w.reader = nil
	}
}
