// Package sqlite provides the public API for the SQLite-backed Loom store.
// It exposes the factory function while keeping implementation details
// internal.
package sqlite

import (
	"github.com/rs/zerolog"

	"github.com/strandlabs/loom/internal/sqlite"
	"github.com/strandlabs/loom/pkg/types"
)

// Open creates or opens a store in cfg.DataDir.
//
// Example:
//
//	store, err := sqlite.Open(types.Config{DataDir: ".loom"}, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(cfg types.Config, logger zerolog.Logger) (types.Store, error) {
	return sqlite.Open(cfg, logger)
}
