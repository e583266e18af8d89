package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{DataDir: "/tmp/loom", CacheSize: 128}.Validate())
	assert.ErrorIs(t, Config{CacheSize: -1}.Validate(), ErrCacheSizeInvalid)
}
