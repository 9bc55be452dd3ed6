package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/caudal/internal/loader"
	"github.com/ajitpratap0/caudal/pkg/config"
	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/remote"
	"github.com/ajitpratap0/caudal/pkg/testutil"
)

// TestMain runs the package from a scratch working directory, where the
// run command writes its log files.
func TestMain(m *testing.M) {
	os.Exit(runInScratchDir(m))
}

func runInScratchDir(m *testing.M) int {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	dir, err := os.MkdirTemp("", "caudal-cli-")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	if err := os.Chdir(dir); err != nil {
		panic(err)
	}
	defer os.Chdir(wd) //nolint:errcheck

	code := m.Run()
	_ = logger.Get().Close()
	return code
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	ctx, cancel := testutil.TestContext(t)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func runConfigs() *config.Configs {
	cfg := config.Default()
	cfg.Logging.Level = "info"
	return cfg
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Caudal v"+version)
	assert.Contains(t, out, "Go version:")
}

func TestInit(t *testing.T) {
	p := testutil.NewProject(t)
	path := filepath.Join(p.Layout.Config, config.DefaultFileName)

	out, err := execute(t, "init", "--root", p.Layout.Root)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(p.Layout.Config, config.DefaultFileName, nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Data, cfg.Data)

	_, err = execute(t, "init", "--root", p.Layout.Root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", "--root", p.Layout.Root, "--force")
	require.NoError(t, err)
}

func TestRun(t *testing.T) {
	p := testutil.NewProject(t)
	p.WriteConfig(runConfigs())
	p.WriteArchive(loader.FileNameCaudalExtra, testutil.SampleArchive)

	_, err := execute(t, "--root", p.Layout.Root)
	require.NoError(t, err)

	// log files land in the working directory, not the project root
	assert.NoFileExists(t, filepath.Join(p.Layout.Root, "logs_run.log"))
	assert.NoFileExists(t, filepath.Join(p.Layout.Root, "logs.log"))
	assert.FileExists(t, "logs.log")

	data, err := os.ReadFile("logs_run.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CONFIGS - Loaded configs from file")
	assert.Contains(t, string(data), filepath.Join(p.Layout.Config, config.DefaultFileName))
	assert.Contains(t, string(data), "PIPELINE - Script completed in")
}

func TestRun_NamedConfigFile(t *testing.T) {
	p := testutil.NewProject(t)
	cfg := runConfigs()
	cfg.Data.CaudalFile = "extract.csv"
	cfg.Observability.MetricsFile = "outputs/run.prom"
	require.NoError(t, cfg.Save(filepath.Join(p.Layout.Config, "local.yaml")))
	p.WriteArchive("extract.csv", testutil.SampleArchive)

	_, err := execute(t, "--root", p.Layout.Root, "local.yaml")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(p.Layout.Outputs, "run.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `caudal_rows_loaded_total{source="archive"} 3`)
}

func TestRun_Errors(t *testing.T) {
	p := testutil.NewProject(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing config file", args: []string{"--root", p.Layout.Root, "missing.yaml"}},
		{name: "too many arguments", args: []string{"--root", p.Layout.Root, "a.yaml", "b.yaml"}},
		{name: "invalid log level", args: []string{"--root", p.Layout.Root, "--log-level", "loud"}},
	}

	p.WriteConfig(runConfigs())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestFetch_NoProvider(t *testing.T) {
	p := testutil.NewProject(t)
	p.WriteConfig(runConfigs())

	_, err := execute(t, "fetch", "--root", p.Layout.Root, "raw/caudal_extra.csv.zip")
	assert.ErrorIs(t, err, remote.ErrNoProvider)
}
