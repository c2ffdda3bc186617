package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot() *cobra.Command {
	root := &cobra.Command{Use: "layerkit"}
	pf := root.PersistentFlags()
	pf.BoolP("quiet", "q", false, "")
	pf.Bool("no-progress", false, "")
	pf.Bool("dummy", false, "")
	pf.String("config", "", "")
	pf.String("log-file", "", "")
	pf.String("log-level", "info", "")
	return root
}

func isolate(t *testing.T) {
	t.Helper()
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "cfg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("HOME", base)
}

func TestInit_Defaults(t *testing.T) {
	isolate(t)
	v, err := Init(newTestRoot())
	require.NoError(t, err)

	g := Globals(v)
	assert.False(t, g.Quiet)
	assert.False(t, g.Dummy)
	assert.Equal(t, "info", g.LogLevel)
	assert.Equal(t, DefaultProgressInterval, g.ProgressInterval)
	assert.NotEmpty(t, g.ScriptsDir)
}

func TestInit_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("LAYERKIT_DUMMY", "true")
	t.Setenv("LAYERKIT_QUIET", "false")

	root := newTestRoot()
	require.NoError(t, root.PersistentFlags().Set("quiet", "true"))

	v, err := Init(root)
	require.NoError(t, err)
	g := Globals(v)
	assert.True(t, g.Quiet, "flag wins over env")
	assert.True(t, g.Dummy, "env applies when flag unset")
}

func TestInit_ExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "layerkit.yaml")
	body := "no_progress: true\nprogress_interval: 250ms\nscripts_dir: /opt/scripts\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	root := newTestRoot()
	require.NoError(t, root.PersistentFlags().Set("config", path))

	v, err := Init(root)
	require.NoError(t, err)
	g := Globals(v)
	assert.True(t, g.NoProgress)
	assert.Equal(t, 250*time.Millisecond, g.ProgressInterval)
	assert.Equal(t, "/opt/scripts", g.ScriptsDir)
}

func TestInit_ExplicitConfigMissing(t *testing.T) {
	isolate(t)
	root := newTestRoot()
	require.NoError(t, root.PersistentFlags().Set("config", filepath.Join(t.TempDir(), "nope.yaml")))

	_, err := Init(root)
	assert.Error(t, err)
}
