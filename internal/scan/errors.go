package scan

import (
	"errors"

	"github.com/lehigh-university-libraries/scanpos/internal/capability"
)

var (
	// ErrCapabilityUnavailable means neither a detector nor a fallback decoder exists
	ErrCapabilityUnavailable = errors.New("no barcode capability available")
	// ErrAcquisition means the capture device could not be opened
	ErrAcquisition = errors.New("failed to acquire capture device")
	// ErrStopped is returned by Start when Stop ran before acquisition finished
	ErrStopped = errors.New("scan stopped")
	// ErrAlreadyRunning is returned by Start while a session exists
	ErrAlreadyRunning = errors.New("scan already running")
)

// OffersManualEntry reports whether err should lead the operator to the
// manual entry prompt instead of retrying the scan.
func OffersManualEntry(err error) bool {
	return errors.Is(err, ErrCapabilityUnavailable) ||
		errors.Is(err, ErrAcquisition) ||
		errors.Is(err, capability.ErrLoadFailed)
}
