package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name  string
		class string
		body  string
		param []string
		want  string
	}{
		{name: "body only", body: "hello", want: "hello"},
		{name: "with class", class: "DataLoader", body: "hello", want: "DATALOADER - hello"},
		{
			name:  "with parameter",
			body:  "Loaded configs from file",
			param: []string{"default_config.yaml"},
			want:  "Loaded configs from file " + strings.Repeat(".", 25) + " default_config.yaml",
		},
		{
			name:  "class and parameter",
			class: "configs",
			body:  "Loaded",
			param: []string{"x"},
			want:  "CONFIGS - Loaded " + strings.Repeat(".", 43) + " x",
		},
		{
			name:  "body longer than column",
			body:  strings.Repeat("b", 60),
			param: []string{"p"},
			want:  strings.Repeat("b", 60) + "  p",
		},
		{
			name:  "non-ascii body counts runes",
			body:  "Río",
			param: []string{"p"},
			want:  "Río " + strings.Repeat(".", 46) + " p",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMessage(tt.class, tt.body, tt.param...))
		})
	}
}

func TestNew_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Console: &buf})
	require.NoError(t, err)

	l.Named("DataLoader").Info("Loaded caudal extra data from file", "caudal_extra.csv.zip")
	l.Warn("careful")
	require.NoError(t, l.Close())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} - INFO - DATALOADER - Loaded caudal extra data from file \.+ caudal_extra\.csv\.zip$`), lines[0])
	assert.Regexp(t, regexp.MustCompile(` - WARNING - careful$`), lines[1])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Console: &buf})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_FileSinks(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, File: DefaultFile, RunFile: DefaultRunFile}

	first, err := New(cfg)
	require.NoError(t, err)
	first.Info("first run")
	require.NoError(t, first.Close())

	second, err := New(cfg)
	require.NoError(t, err)
	second.Info("second run")
	require.NoError(t, second.Close())

	persistent := readLines(t, filepath.Join(dir, DefaultFile))
	require.Len(t, persistent, 2)
	assert.Contains(t, persistent[0], "first run")
	assert.Contains(t, persistent[1], "second run")

	run := readLines(t, filepath.Join(dir, DefaultRunFile))
	require.Len(t, run, 1)
	assert.Contains(t, run[0], "second run")
}

func TestInit_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()

	require.NoError(t, Init(Config{Dir: dir, File: DefaultFile, RunFile: DefaultRunFile}))
	require.NoError(t, Init(Config{Dir: dir, File: DefaultFile, RunFile: DefaultRunFile}))
	require.NoError(t, Init(Config{Dir: other, File: DefaultFile, RunFile: DefaultRunFile}))

	Get().Info("only once")
	Get().Named("x").Info("only once too")
	require.NoError(t, Get().Close())

	for _, name := range []string{DefaultFile, DefaultRunFile} {
		lines := readLines(t, filepath.Join(dir, name))
		assert.Len(t, lines, 2, name)
	}
	_, err := os.Stat(filepath.Join(other, DefaultFile))
	assert.True(t, os.IsNotExist(err))
}
