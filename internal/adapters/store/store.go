// Package store selects the Directory and ChatArchive backend.
package store

import (
	"context"
	"fmt"

	"github.com/dkeye/Meet/internal/adapters/store/memory"
	"github.com/dkeye/Meet/internal/adapters/store/sqlite"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Store is a meeting directory, a profile book and a chat archive in one.
type Store interface {
	core.Directory
	core.ChatArchive
	SaveProfile(ctx context.Context, p domain.Profile) error
	Close() error
}

func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
