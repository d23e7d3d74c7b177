package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/otus/internal/config"
)

const input = `>a
ACGTACGTTAGCCATGACGTAGCTAGCTAGGATCCGATCGATCGTAGCTAGCTA
>b
ACGTACGTTAGCCATGACGTAGCTAGCTAGGATCCGATCGATCGTAGCTAGCTT
>c
TTGACCGATCGGATCGATTAGGCTAGCTTACGGATCGATCGGCTAGGCTAACGA
`

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func TestClusterCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	in := filepath.Join(dir, "reads.fa")
	out := filepath.Join(dir, "trees.nex")
	require.NoError(t, os.WriteFile(in, []byte(input), 0600))

	require.NoError(t, execute(t, "cluster", "--no-store", "-d", "hamming", "-m", "5", "-o", out, in))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "#NEXUS\n"))
	assert.Contains(t, text, "tree cluster_0_1 = ")
	for _, id := range []string{"a", "b", "c"} {
		assert.Contains(t, text, id+":")
	}
}

func TestClusterCommand_RecordsRun(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	in := filepath.Join(dir, "reads.fa")
	require.NoError(t, os.WriteFile(in, []byte(input), 0600))

	require.NoError(t, execute(t, "cluster", "-d", "hamming", "-f", "json", "-o", filepath.Join(dir, "out.json"), in))
	_, err := os.Stat(config.DBPath())
	assert.NoError(t, err)

	assert.NoError(t, execute(t, "runs", "prune", "--keep", "0"))
}

func TestClusterCommand_BadFlags(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	in := filepath.Join(dir, "reads.fa")
	require.NoError(t, os.WriteFile(in, []byte(input), 0600))

	assert.Error(t, execute(t, "cluster", "--no-store", "-t", "0.1,abc", in))
	assert.Error(t, execute(t, "cluster", "--no-store", "-f", "xml", in))
	assert.Error(t, execute(t, "cluster", "--no-store"))
}

func TestClusterFlags_Apply(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	f := &clusterFlags{}
	fs := pflag.NewFlagSet("cluster", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse([]string{"-m", "40", "-t", "0.2,0.05", "--no-dedupe"}))

	cfg := config.Default()
	require.NoError(t, f.apply(fs, cfg, "reads.fa"))
	assert.Equal(t, 40, cfg.MaxClade)
	assert.Equal(t, []float64{0.2, 0.05}, cfg.Thresholds)
	assert.False(t, cfg.Dedupe)
	assert.Equal(t, config.DefaultDistance, cfg.Distance)
}

func TestClusterFlags_Preset(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".otus"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".otus", "presets.yaml"), []byte(`
presets:
  - name: genus
    thresholds: [0.1, 0.03]
    max_clade: 80
    inputs: ["runs/16S/"]
`), 0600))

	f := &clusterFlags{}
	fs := pflag.NewFlagSet("cluster", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse([]string{"-m", "40"}))

	cfg := config.Default()
	require.NoError(t, f.apply(fs, cfg, "runs/16S/a.fa"))
	assert.Equal(t, []float64{0.1, 0.03}, cfg.Thresholds)
	assert.Equal(t, 40, cfg.MaxClade, "flags override the preset")

	f.preset = "missing"
	assert.Error(t, f.apply(fs, config.Default(), "a.fa"))
}
