// Package capability loads optional recognition providers on first use.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLoadFailed reports that a provider could not be initialised
var ErrLoadFailed = errors.New("capability failed to load")

// LoadFunc constructs a provider
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Loader constructs its provider on the first successful Get and then
// reuses it. Failed loads are not cached, so a later Get retries.
type Loader[T any] struct {
	name string
	load LoadFunc[T]

	mu     sync.Mutex
	loaded bool
	value  T
}

func NewLoader[T any](name string, load LoadFunc[T]) *Loader[T] {
	return &Loader[T]{name: name, load: load}
}

func (l *Loader[T]) Name() string {
	return l.name
}

// Get returns the provider, loading it if needed. Errors wrap ErrLoadFailed.
func (l *Loader[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.value, nil
	}

	var zero T
	if l.load == nil {
		return zero, fmt.Errorf("%w: %s: no loader configured", ErrLoadFailed, l.name)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	v, err := l.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w: %s: %w", ErrLoadFailed, l.name, err)
	}

	l.value = v
	l.loaded = true
	return v, nil
}

// Ready wraps an already constructed provider
func Ready[T any](name string, v T) *Loader[T] {
	return &Loader[T]{name: name, loaded: true, value: v}
}
