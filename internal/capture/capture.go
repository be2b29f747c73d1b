// Package capture defines the camera, detector and decoder contracts used
// while scanning, along with the implementations scanpos ships.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/lehigh-university-libraries/scanpos/internal/providers"
)

var (
	// ErrDeviceLost is returned by a Handle whose device went away
	ErrDeviceLost = errors.New("capture device lost")
	// ErrNoFrame means the device has not produced a frame yet
	ErrNoFrame = errors.New("no frame available")
)

// Facing selects which camera to open
type Facing int

const (
	FacingAny Facing = iota
	FacingEnvironment
)

func (f Facing) String() string {
	switch f {
	case FacingEnvironment:
		return "environment"
	default:
		return "any"
	}
}

// Frame is one captured still
type Frame struct {
	Image      providers.Image
	CapturedAt time.Time
	Source     string
}

// Handle is an acquired capture device
type Handle interface {
	Frame(ctx context.Context) (Frame, error)
}

// Provider opens and closes capture devices
type Provider interface {
	Acquire(ctx context.Context, facing Facing) (Handle, error)
	Release(h Handle) error
}

// Detection is a code found in a frame
type Detection struct {
	RawValue string `json:"rawValue"`
	Format   string `json:"format,omitempty"`
}

// Detector finds codes in single frames
type Detector interface {
	Available(ctx context.Context) bool
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}

// DecodeResult is one attempt of a continuous decoder.
// Err is set for attempts that found nothing readable.
type DecodeResult struct {
	Text   string
	Format string
	Err    error
}

// DecodeLibrary decodes codes continuously until ctx is done
type DecodeLibrary interface {
	DecodeContinuously(ctx context.Context, h Handle, onResult func(DecodeResult)) error
	Reset()
}
