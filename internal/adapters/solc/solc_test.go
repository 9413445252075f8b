package solc

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// fakeSolc writes a shell script standing in for solc. It echoes stdin back
// wrapped in a JSON object so the test can check what was sent.
func fakeSolc(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	path := filepath.Join(t.TempDir(), "solc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newCompiler(path string, timeout time.Duration) *Compiler {
	cfg := &config.RuntimeConfig{Compiler: config.CompilerConfig{Path: path, Timeout: timeout}}
	return NewCompiler(cfg, slog.New(slog.DiscardHandler))
}

func TestCompiler_CompileStandardJSON(t *testing.T) {
	bin := fakeSolc(t, `
if [ "$1" = "--version" ]; then
  echo "solc, the solidity compiler commandline interface"
  echo "Version: 0.8.19+commit.7dd6d404.Linux.g++"
  exit 0
fi
[ "$1" = "--standard-json" ] || exit 9
printf '{"input":'
cat
printf '}'
`)
	c := newCompiler(bin, time.Minute)

	out, err := c.CompileStandardJSON(context.Background(), []byte(`{"language":"Solidity"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"input":{"language":"Solidity"}}`, string(out))

	version, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.8.19+commit.7dd6d404.Linux.g++", version)
}

func TestCompiler_Failures(t *testing.T) {
	t.Run("missing binary", func(t *testing.T) {
		c := newCompiler(filepath.Join(t.TempDir(), "nope"), time.Minute)
		_, err := c.CompileStandardJSON(context.Background(), []byte("{}"))
		assert.ErrorIs(t, err, ErrNotInstalled)
		_, err = c.Version(context.Background())
		assert.ErrorIs(t, err, ErrNotInstalled)
	})

	t.Run("non zero exit carries stderr", func(t *testing.T) {
		c := newCompiler(fakeSolc(t, `echo "boom" >&2; exit 1`), time.Minute)
		_, err := c.CompileStandardJSON(context.Background(), []byte("{}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("empty output", func(t *testing.T) {
		c := newCompiler(fakeSolc(t, `cat >/dev/null; exit 0`), time.Minute)
		_, err := c.CompileStandardJSON(context.Background(), []byte("{}"))
		assert.ErrorContains(t, err, "no output")
	})

	t.Run("timeout", func(t *testing.T) {
		c := newCompiler(fakeSolc(t, `exec sleep 5`), 50*time.Millisecond)
		_, err := c.CompileStandardJSON(context.Background(), []byte("{}"))
		assert.ErrorContains(t, err, "did not finish")
	})

	t.Run("unrecognized version", func(t *testing.T) {
		c := newCompiler(fakeSolc(t, `echo "hello"`), time.Minute)
		_, err := c.Version(context.Background())
		assert.ErrorContains(t, err, "unrecognized solc version")
	})
}
