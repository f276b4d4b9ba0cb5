package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]string{"  Trail Running ", "trail running", "WATERPROOF", "", "  ", "road"})
	assert.Equal(t, []string{"trail running", "waterproof", "road"}, got)
}

func TestNormalizeNil(t *testing.T) {
	assert.Empty(t, Normalize(nil))
}

func TestValidate(t *testing.T) {
	taxonomy := []string{"trail running", "road running", "waterproof", "kids", "sale"}

	t.Run("valid assignment", func(t *testing.T) {
		result := Validate([]string{"Trail Running", "waterproof"}, taxonomy)
		assert.True(t, result.Valid)
		assert.Equal(t, []string{"trail running", "waterproof"}, result.Labels)
		assert.Empty(t, result.Errors)
	})

	t.Run("no taxonomy short-circuits", func(t *testing.T) {
		result := Validate([]string{"trail running", "waterproof"}, nil)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeNoTaxonomy, result.Errors[0].Code)
	})

	t.Run("unknown labels", func(t *testing.T) {
		result := Validate([]string{"trail running", "snowboards"}, taxonomy)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeInvalidLabels, result.Errors[0].Code)
		assert.Equal(t, []string{"snowboards"}, result.Errors[0].Details)
	})

	t.Run("too few labels", func(t *testing.T) {
		result := Validate([]string{"trail running"}, taxonomy)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeTooFewLabels, result.Errors[0].Code)
	})

	t.Run("duplicates collapse below the minimum", func(t *testing.T) {
		result := Validate([]string{"trail running", "Trail Running "}, taxonomy)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeTooFewLabels, result.Errors[0].Code)
		assert.Equal(t, []string{"trail running"}, result.Labels)
	})

	t.Run("too many labels", func(t *testing.T) {
		result := Validate([]string{"trail running", "road running", "waterproof", "kids", "sale", "unknown six"}, taxonomy)
		assert.False(t, result.Valid)
		codes := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			codes = append(codes, e.Code)
		}
		assert.Contains(t, codes, CodeTooManyLabels)
		assert.Contains(t, codes, CodeInvalidLabels, "both problems are reported together")
	})

	t.Run("taxonomy match is case-insensitive", func(t *testing.T) {
		result := Validate([]string{"TRAIL RUNNING", "Kids"}, []string{"Trail Running", "KIDS"})
		assert.True(t, result.Valid)
		assert.Equal(t, []string{"trail running", "kids"}, result.Labels)
	})

	t.Run("validated output is a fixed point", func(t *testing.T) {
		first := Validate([]string{"  Trail Running ", "WATERPROOF", "waterproof"}, taxonomy)
		second := Validate(first.Labels, taxonomy)
		assert.Equal(t, first.Labels, second.Labels)
		assert.Equal(t, first.Valid, second.Valid)
	})
}
