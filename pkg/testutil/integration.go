package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/caudal/pkg/compression"
	"github.com/ajitpratap0/caudal/pkg/config"
	"github.com/ajitpratap0/caudal/pkg/paths"
)

// Project is a throwaway repository tree rooted at a directory named
// paths.DefaultRootName.
type Project struct {
	t      *testing.T
	Layout *paths.Layout
}

// NewProject creates the project tree inside the test's temp directory.
func NewProject(t *testing.T) *Project {
	t.Helper()

	root := filepath.Join(t.TempDir(), paths.DefaultRootName)
	layout, err := paths.NewLayout(root)
	require.NoError(t, err)
	for _, dir := range []string{layout.DataRaw, layout.DataStatic, layout.Config, layout.Models, layout.Outputs} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	return &Project{t: t, Layout: layout}
}

// WriteArchive writes content to data/raw/name, compressed according to
// the extension of name.
func (p *Project) WriteArchive(name, content string) string {
	p.t.Helper()

	path := filepath.Join(p.Layout.DataRaw, name)
	w, err := compression.Create(path)
	require.NoError(p.t, err)
	_, err = w.Write([]byte(content))
	require.NoError(p.t, err)
	require.NoError(p.t, w.Close())
	return path
}

// WriteConfig saves cfg as the default configuration file.
func (p *Project) WriteConfig(cfg *config.Configs) string {
	p.t.Helper()

	path := filepath.Join(p.Layout.Config, config.DefaultFileName)
	require.NoError(p.t, cfg.Save(path))
	return path
}

// WriteFile writes content to a path relative to the project root.
func (p *Project) WriteFile(rel, content string) string {
	p.t.Helper()

	path := filepath.Join(p.Layout.Root, rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ProjectSuite gives every test a fresh project and a bounded context.
type ProjectSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	Project *Project
}

// SetupTest runs before each test in the suite
func (s *ProjectSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.Project = NewProject(s.T())
}

// TearDownTest runs after each test in the suite
func (s *ProjectSuite) TearDownTest() {
	s.cancel()
}

// Context returns the test context
func (s *ProjectSuite) Context() context.Context {
	return s.ctx
}

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}
