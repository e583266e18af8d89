// Shared helpers for loom CLI commands.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/strandlabs/loom/pkg/sqlite"
	"github.com/strandlabs/loom/pkg/types"
)

// newLogger builds the CLI logger. Warnings and errors only, unless
// --verbose raises the level to debug.
func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// openStore resolves the data directory and opens the SQLite store. The
// caller must defer store.Close().
func openStore() (types.Store, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{DataDir: dataDir}
	store, err := sqlite.Open(cfg, newLogger())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return store, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal JSON:", err)
		os.Exit(exitSysError)
	}
	fmt.Println(string(out))
}

// isNotFound returns true if the error wraps ErrNotFound.
func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}

// isConflict returns true if the error wraps ErrConflict.
func isConflict(err error) bool {
	return errors.Is(err, types.ErrConflict)
}

// localTimestamp is the wall-clock stamp recorded inside payloads, distinct
// from the record's own CreatedAt.
func localTimestamp() string {
	return time.Now().Format(time.RFC3339)
}

// collectionTitle renders a display title for a collection record, falling
// back to the record ID when the title is empty or the payload is
// undecodable.
func collectionTitle(rec *types.Record) string {
	payload, err := rec.CollectionPayload()
	if err != nil || payload.Title == "" {
		return rec.ID
	}
	return payload.Title
}

// requireActiveCollection resolves the collection to operate on: an explicit
// ID wins, otherwise the active collection pointer. Exits with a user error
// when neither is available.
func requireActiveCollection(store types.Store, explicit string) string {
	if explicit != "" {
		return explicit
	}

	id, err := store.ActiveCollectionID()
	if err != nil {
		fmt.Fprintln(os.Stderr, "read active collection:", err)
		os.Exit(exitSysError)
	}
	if id == "" {
		fmt.Fprintln(os.Stderr, "no active collection; pass --collection or run 'loom create' first")
		os.Exit(exitUserError)
	}
	return id
}
