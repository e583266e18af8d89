// Config for Store construction.
package types

import (
	"errors"
	"time"
)

// Config holds the parameters for opening a Store.
type Config struct {
	// DataDir is the directory holding the database file. Created if it
	// does not exist. Defaults to the current directory when empty.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// CacheSize bounds the record read cache; DefaultCacheSize when <= 0.
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// CacheTTL expires cached records; DefaultCacheTTL when <= 0.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// Cache defaults.
const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 5 * time.Minute
)

// Config validation errors.
var (
	ErrCacheSizeInvalid = errors.New("cache size must not be negative")
)

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.CacheSize < 0 {
		return ErrCacheSizeInvalid
	}
	return nil
}
