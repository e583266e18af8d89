// Settings table tests.
package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/loom/pkg/types"
)

func TestSettingsRoundTrip(t *testing.T) {
	s := setupStore(t)

	found, err := s.GetSetting("model", nil)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetSetting("model", "gpt-4.1"))

	var model string
	found, err = s.GetSetting("model", &model)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "gpt-4.1", model)

	// Overwrite replaces the previous value.
	require.NoError(t, s.SetSetting("model", "o3"))
	_, err = s.GetSetting("model", &model)
	require.NoError(t, err)
	assert.Equal(t, "o3", model)
}

func TestSettingsStructuredValues(t *testing.T) {
	s := setupStore(t)

	type endpoint struct {
		URL     string `json:"url"`
		Timeout int    `json:"timeout"`
	}
	require.NoError(t, s.SetSetting("endpoint", endpoint{URL: "http://localhost:8080", Timeout: 30}))

	var got endpoint
	found, err := s.GetSetting("endpoint", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "http://localhost:8080", got.URL)
	assert.Equal(t, 30, got.Timeout)
}

func TestDeleteSetting(t *testing.T) {
	s := setupStore(t)

	require.NoError(t, s.SetSetting("baseUrl", "http://example.test"))
	require.NoError(t, s.DeleteSetting("baseUrl"))

	found, err := s.GetSetting("baseUrl", nil)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting an absent key is not an error.
	require.NoError(t, s.DeleteSetting("baseUrl"))
}

func TestActiveCollectionPointer(t *testing.T) {
	s := setupStore(t)

	active, err := s.ActiveCollectionID()
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.SetActiveCollectionID("col_manually_set_00000"))
	active, err = s.ActiveCollectionID()
	require.NoError(t, err)
	assert.Equal(t, "col_manually_set_00000", active)

	// The raw stored value is plain JSON under the well-known key.
	var raw types.SettingValue
	found, err := s.GetSetting(types.SettingActiveCollection, &raw)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `"col_manually_set_00000"`, string(raw))
}
