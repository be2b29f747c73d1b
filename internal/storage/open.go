package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Open returns the store named by driver along with a closer for it.
// driver is one of "memory", "sqlite" or "postgres".
func Open(driver, path, dsn string) (Store, io.Closer, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), closerFunc(func() error { return nil }), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		if dsn == "" {
			return nil, nil, fmt.Errorf("postgres storage requires a dsn")
		}
		s, err := OpenPostgres(dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
