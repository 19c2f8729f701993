package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "warn", Prefix: "tada"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "id", 42)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "id=42")
	assert.Contains(t, out, "tada")

	_, err = New(&buf, Options{Level: "loud"})
	assert.Error(t, err)
}

func TestRedirectToFile(t *testing.T) {
	logger, err := New(&bytes.Buffer{}, Options{})
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "logs", "tada.log")
	c, err := RedirectToFile(logger, p)
	require.NoError(t, err)
	logger.Error("mutation failed", "op", "delete")
	require.NoError(t, c.Close())

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), "mutation failed")

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
