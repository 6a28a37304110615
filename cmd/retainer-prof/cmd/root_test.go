package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retainer-prof/internal/testutil"
)

// A thread holding a cons cell whose fields both point at one nil.
const listSnapshot = `{
  "info_tables": [
    {"name": "Main.main", "kind": "TSO"},
    {"name": "GHC.Types.:", "kind": "CONSTR_2_0", "nptrs": 2},
    {"name": "GHC.Types.[]", "kind": "CONSTR"},
    {"name": "ret", "kind": "RET_SMALL", "bitmap": {"layout": "P"}}
  ],
  "closures": [
    {"info": 1, "thread": {"state": "run"}, "frames": [{"info": 4, "payload": [2]}]},
    {"info": 2, "ptrs": [3, 3]},
    {"info": 3}
  ],
  "roots": {"threads": [1]}
}`

// resetFlags restores every flag to its default; the command tree is
// package-global and keeps values between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestProfileCommand(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSnapshot(t, listSnapshot)
	conf := testutil.WriteFile(t, dir, "config.yaml", []byte(strings.Join([]string{
		"log:",
		"  level: error",
		"database:",
		"  enabled: true",
		"  type: sqlite",
		"  path: " + filepath.Join(dir, "census.db"),
	}, "\n")))

	out, err := execute(t, "profile", "-c", conf, "-i", input, "-o", dir,
		"--uuid", "cli-1", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "# scheme=info objects=3")
	assert.Contains(t, out, "{Main.main}")
	assert.FileExists(t, filepath.Join(dir, "cli-1", "report.json"))

	out, err = execute(t, "census", "-c", conf, "cli-1")
	require.NoError(t, err)
	assert.Contains(t, out, "{Main.main}")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSnapshot(t, listSnapshot)
	bin := filepath.Join(dir, "heap.rsnap.zst")

	out, err := execute(t, "convert", "-i", input, "-o", bin)
	require.NoError(t, err)
	assert.Contains(t, out, "3 closures")

	out, err = execute(t, "profile", "-i", bin, "-o", dir, "--uuid", "bin-1", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "{Main.main}")
}

func TestProfileCommandMissingInput(t *testing.T) {
	_, err := execute(t, "profile", "-i", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input file not found")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, BinName()+" "+Version+" (commit ")

	out, err = execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}
