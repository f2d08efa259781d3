package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParameterForInjection(t *testing.T) {
	t.Run("clean value", func(t *testing.T) {
		assert.Nil(t, CheckParameterForInjection("pattern", "gold_%"))
	})

	t.Run("injection attempt", func(t *testing.T) {
		result := CheckParameterForInjection("pattern", "'; DROP TABLE users--")
		require.NotNil(t, result)
		assert.True(t, result.IsSQLi)
		assert.Equal(t, "pattern", result.ParamName)
		assert.NotEmpty(t, result.Fingerprint)
	})

	t.Run("non-string skipped", func(t *testing.T) {
		assert.Nil(t, CheckParameterForInjection("limit", 100))
		assert.Nil(t, CheckParameterForInjection("flag", true))
	})
}

func TestCheckAllParameters(t *testing.T) {
	params := map[string]any{
		"schema":  "public",
		"pattern": "1' OR '1'='1",
		"limit":   50,
	}

	results := CheckAllParameters(params)
	require.Len(t, results, 1)
	assert.Equal(t, "pattern", results[0].ParamName)
}
