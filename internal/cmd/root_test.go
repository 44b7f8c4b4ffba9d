package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		SetVersionInfo(origVersion, origCommit, origBuildDate)
	}()

	SetVersionInfo("1.0.0", "abc123", "2026-01-15")

	assert.Equal(t, "1.0.0", versionInfo.Version)
	assert.Equal(t, "abc123", versionInfo.Commit)
	assert.Equal(t, "2026-01-15", versionInfo.BuildDate)
	assert.Contains(t, rootCmd.Version, "1.0.0")
	assert.Contains(t, rootCmd.Version, "abc123")
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
		want    string
	}{
		{
			name:    "basic error",
			code:    1,
			message: "Something failed",
			want:    "Something failed",
		},
		{
			name:    "includes exit code",
			code:    32,
			message: "Auth failed",
			want:    "exit code 32",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := exitError(tt.code, tt.message, assert.AnError)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want))

			var coded *codedError
			require.ErrorAs(t, err, &coded)
			assert.Equal(t, tt.code, coded.code)
		})
	}
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"nodes_a.csv", "nodes_b.csv", "edges.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("id\n1\n"), 0644))
	}

	t.Run("literal path", func(t *testing.T) {
		files, err := expandGlobs([]string{filepath.Join(dir, "edges.csv")})
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("glob matches multiple", func(t *testing.T) {
		files, err := expandGlobs([]string{filepath.Join(dir, "nodes_*.csv")})
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("no matches is an error", func(t *testing.T) {
		_, err := expandGlobs([]string{filepath.Join(dir, "missing_*.csv")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no files match")
	})

	t.Run("empty patterns yield nothing", func(t *testing.T) {
		files, err := expandGlobs(nil)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}
