package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLayerctl(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.json")
	require.NoError(t, os.WriteFile(base, []byte("# defaults\n[server]\nhost = \"localhost\"\nport = 8080\n"), 0644))
	require.NoError(t, os.WriteFile(local, []byte(`{"server": {"port": 9090}}`), 0644))

	layers := []string{"--layer", base, "-l", local}

	t.Run("Sources", func(t *testing.T) {
		out, err := run(t, append(layers, "sources")...)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration Audit Report")
		assert.Contains(t, out, "-> Layer 1: file:"+local)
		assert.Contains(t, out, "-> Layer 0: file:"+base)
	})

	t.Run("Get", func(t *testing.T) {
		out, err := run(t, append(layers, "get", "server.port", "--source")...)
		require.NoError(t, err)
		assert.Equal(t, "9090\nsource: file:"+local+" (layer 1)\n", out)

		out, err = run(t, append(layers, "get", "server")...)
		require.NoError(t, err)
		assert.Equal(t, "{\"host\":\"localhost\",\"port\":9090}\n", out)

		_, err = run(t, append(layers, "get", "missing")...)
		assert.Error(t, err)
	})

	t.Run("SetRoutesToSourceFile", func(t *testing.T) {
		out, err := run(t, append(layers, "set", "server.host", "0.0.0.0")...)
		require.NoError(t, err)
		assert.Equal(t, "updated "+base+"\n", out)

		data, err := os.ReadFile(base)
		require.NoError(t, err)
		assert.Equal(t, "# defaults\n[server]\nhost = \"0.0.0.0\"\nport = 8080\n", string(data))
	})

	t.Run("SetRaw", func(t *testing.T) {
		_, err := run(t, append(layers, "set", "server.port", "7070", "--raw")...)
		require.NoError(t, err)

		out, err := run(t, append(layers, "dump", "--format", "json")...)
		require.NoError(t, err)
		assert.Contains(t, out, `"port": "7070"`)
	})

	t.Run("SetUnknownNeedsDefaultTarget", func(t *testing.T) {
		_, err := run(t, append(layers, "set", "feature.flag", "true")...)
		assert.Error(t, err)

		target := filepath.Join(dir, "user.yaml")
		out, err := run(t, append(layers, "--default-target", target, "set", "feature.flag", "true")...)
		require.NoError(t, err)
		assert.Equal(t, "updated "+target+"\n", out)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "feature:\n  flag: true\n", string(data))
	})

	t.Run("Unset", func(t *testing.T) {
		_, err := run(t, append(layers, "unset", "server.port")...)
		require.NoError(t, err)

		out, err := run(t, append(layers, "get", "server.port", "-s")...)
		require.NoError(t, err)
		assert.Equal(t, "8080\nsource: file:"+base+" (layer 0)\n", out)
	})

	t.Run("EnvLayer", func(t *testing.T) {
		t.Setenv("LAYERCTL__SERVER__HOST", "from-env")
		out, err := run(t, append(layers, "--env-prefix", "LAYERCTL", "get", "server.host", "-s")...)
		require.NoError(t, err)
		assert.Equal(t, "from-env\nsource: env:LAYERCTL (layer 2)\n", out)

		_, err = run(t, append(layers, "--env-prefix", "LAYERCTL", "set", "server.host", "x")...)
		assert.Error(t, err)
	})

	t.Run("MissingLayerFails", func(t *testing.T) {
		_, err := run(t, "--layer", filepath.Join(dir, "nope.toml"), "sources")
		assert.Error(t, err)
	})
}
