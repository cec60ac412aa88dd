package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "funnel version ")
}

func TestInitValidateGraph(t *testing.T) {
	t.Setenv("FUNNEL_CONFIG_FILE", "")
	t.Setenv("FUNNEL_MESSAGE_PACING", "0s")
	dir := filepath.Join(t.TempDir(), "funnels")

	out, err := run(t, "init", dir, "--id", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "demo.yaml")
	_, err = os.Stat(filepath.Join(dir, "demo.yaml"))
	require.NoError(t, err)

	out, err = run(t, "validate", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "demo: valid")

	out, err = run(t, "graph", "demo", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "checkout")
}
