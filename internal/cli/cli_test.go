package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/bnfold/pkg/buildinfo"
	"github.com/matzehuels/bnfold/pkg/dag/transform"
	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/graph"
)

// testModel is in → fc → bn1 → relu → bn2 → out. bn1 folds into fc; bn2
// is blocked by the activation on one side and reaches only the output on
// the other.
func testModel() *graph.Model {
	stats := func(vals ...float64) graph.TensorSpec {
		return graph.TensorSpec{DType: "float32", Shape: []int{len(vals)}, Data: vals}
	}
	return &graph.Model{
		Name: "tiny",
		Nodes: []graph.NodeSpec{
			{ID: "in", Kind: "input", Config: &graph.ConfigSpec{Channels: 2}},
			{ID: "fc", Kind: "affine", Op: "dense", Inputs: []string{"in"},
				Weights: map[string]graph.TensorSpec{
					"kernel": {DType: "float32", Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}},
				}},
			{ID: "bn1", Kind: "normalization", Inputs: []string{"fc"},
				Weights: map[string]graph.TensorSpec{"mean": stats(0.5, -1), "variance": stats(1, 2)}},
			{ID: "relu", Kind: "elementwise", Op: "relu", Inputs: []string{"bn1"}},
			{ID: "bn2", Kind: "normalization", Inputs: []string{"relu"},
				Weights: map[string]graph.TensorSpec{"mean": stats(0, 0), "variance": stats(1, 1)}},
			{ID: "out", Kind: "output", Inputs: []string{"bn2"}},
		},
	}
}

// testEnv isolates config and cache directories and writes the test
// model to a temp dir.
func testEnv(t *testing.T) (modelPath string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	modelPath = filepath.Join(t.TempDir(), "tiny.json")
	require.NoError(t, graph.WriteFile(testModel(), modelPath))
	return modelPath
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	c := New(&logs, LogInfo)
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFoldCommand(t *testing.T) {
	in := testEnv(t)

	out, err := execute(t, "fold", in)
	require.NoError(t, err)
	assert.Contains(t, out, "Folded "+in)
	assert.Contains(t, out, "1 folded")
	assert.Contains(t, out, "1 kept")
	assert.Contains(t, out, "NonlinearPathBlocked × 1")
	assert.Contains(t, out, "fresh")

	folded, err := graph.ReadFile(filepath.Join(filepath.Dir(in), "tiny.folded.json"))
	require.NoError(t, err)
	assert.Len(t, folded.Nodes, 5)

	out, err = execute(t, "fold", in)
	require.NoError(t, err)
	assert.Contains(t, out, "cached")
}

func TestFoldCommand_OutputAndNoCache(t *testing.T) {
	in := testEnv(t)
	dst := filepath.Join(t.TempDir(), "out.msgpack")

	_, err := execute(t, "fold", "--no-cache", "-o", dst, in)
	require.NoError(t, err)

	m, err := graph.ReadFile(dst)
	require.NoError(t, err)
	assert.Len(t, m.Nodes, 5)
}

func TestFoldCommand_Errors(t *testing.T) {
	in := testEnv(t)

	_, err := execute(t, "fold", "-o", "x.json", in, in)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = execute(t, "fold", filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))

	out, err := execute(t, "fold", in, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 models failed")
	assert.Contains(t, out, "Folded "+in)

	_, err = execute(t, "fold", "--jobs=-1", in)
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	in := testEnv(t)

	out, err := execute(t, "inspect", in)
	require.NoError(t, err)
	assert.Contains(t, out, "bn1")
	assert.Contains(t, out, "folded backward")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "NonlinearPathBlocked")
	assert.Contains(t, out, "1 normalization layer(s) stay in the graph")

	_, err = os.Stat(filepath.Join(filepath.Dir(in), "tiny.folded.json"))
	assert.True(t, os.IsNotExist(err), "inspect must not write output")
}

func TestInspectCommand_JSON(t *testing.T) {
	in := testEnv(t)

	out, err := execute(t, "inspect", "--json", in)
	require.NoError(t, err)

	var report transform.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.FoldedCount)
	assert.Equal(t, 2, report.Rounds)
	require.Len(t, report.NotFolded, 1)
	assert.Equal(t, "bn2", report.NotFolded[0].NodeID)
	assert.Equal(t, transform.NonlinearPathBlocked, report.NotFolded[0].Reason)
	require.Len(t, report.Plans, 1)
	assert.Equal(t, []string{"fc"}, report.Plans[0].Roots)
}

func TestDotCommand(t *testing.T) {
	in := testEnv(t)

	out, err := execute(t, "dot", in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph G {"))
	assert.Contains(t, out, `"fc" -> "bn1";`)

	out, err = execute(t, "dot", "--folded", in)
	require.NoError(t, err)
	assert.NotContains(t, out, `"bn1"`)
	assert.Contains(t, out, `"fc" -> "relu";`)
	assert.Contains(t, out, "penwidth=3")

	dst := filepath.Join(t.TempDir(), "g.dot")
	_, err = execute(t, "dot", "--detailed", "-o", dst, in)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), `kernel: [2 2]`)
}

func TestCacheCommands(t *testing.T) {
	in := testEnv(t)

	out, err := execute(t, "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.Getenv("XDG_CACHE_HOME"), appName), strings.TrimSpace(out))

	out, err = execute(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache is empty")

	_, err = execute(t, "fold", in)
	require.NoError(t, err)

	out, err = execute(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 cached entries")
}

func TestCacheClear_UnsupportedBackend(t *testing.T) {
	testEnv(t)
	cfg := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[cache]\nbackend = \"none\"\n"), 0o644))

	_, err := execute(t, "--config", cfg, "cache", "clear")
	assert.True(t, errors.Is(err, errors.ErrCodeUnsupported))
}

func TestVersionCommand(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "version", "--json")
	require.NoError(t, err)
	var info buildinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, buildinfo.Get(), info)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: ")
}

func TestVerboseFlag(t *testing.T) {
	in := testEnv(t)

	var out, logs bytes.Buffer
	c := New(&logs, LogInfo)
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"-v", "fold", "--no-cache", in})
	require.NoError(t, root.Execute())

	assert.Contains(t, logs.String(), "folded")
	assert.Contains(t, logs.String(), "not folded")
}
