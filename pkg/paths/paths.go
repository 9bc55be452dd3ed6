// Package paths locates the repository root and derives the fixed set of
// data, configuration, model and output directories beneath it.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultRootName is the directory name that marks the repository root
	DefaultRootName = "spike-challenge"
	// DefaultMaxParents bounds the upward search for the root
	DefaultMaxParents = 10
	// RootNameEnv overrides DefaultRootName
	RootNameEnv = "CAUDAL_ROOT_NAME"

	DirData          = "data"
	DirDataRaw       = "raw"
	DirDataFormatted = "formatted"
	DirStatic        = "static"
	DirConfigs       = "configs"
	DirModels        = "models"
	DirOutputs       = "outputs"
)

var (
	// ErrRootNotFound is returned when no ancestor matches the root name
	ErrRootNotFound = errors.New("repository root not found")
	// ErrFileNotFound is returned by FindUp when no ancestor holds the file
	ErrFileNotFound = errors.New("file not found in any parent directory")
)

// Layout is the resolved set of repository directories. It is computed once
// at startup and passed to the components that need it.
type Layout struct {
	Root          string
	Data          string
	DataRaw       string
	DataFormatted string
	DataStatic    string
	Config        string
	Models        string
	Outputs       string
}

// FindRoot walks upward from start and returns the first directory whose
// last path segment equals name. At most maxParents directories are checked.
func FindRoot(start, name string, maxParents int) (string, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for i := 0; i < maxParents; i++ {
		if filepath.Base(current) == name {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("%w: %q within %d parents of %s", ErrRootNotFound, name, maxParents, start)
}

// NewLayout derives every repository directory from root.
func NewLayout(root string) (*Layout, error) {
	root, err := realpath(root)
	if err != nil {
		return nil, err
	}

	data := filepath.Join(root, DirData)
	formatted := filepath.Join(data, DirDataFormatted)

	l := &Layout{Root: root}
	for dst, p := range map[*string]string{
		&l.Data:          data,
		&l.DataRaw:       filepath.Join(data, DirDataRaw),
		&l.DataFormatted: formatted,
		&l.DataStatic:    filepath.Join(formatted, DirStatic),
		&l.Config:        filepath.Join(root, DirConfigs),
		&l.Models:        filepath.Join(root, DirModels),
		&l.Outputs:       filepath.Join(root, DirOutputs),
	} {
		resolved, err := realpath(p)
		if err != nil {
			return nil, err
		}
		*dst = resolved
	}
	return l, nil
}

// Discover finds the root named name starting from each of starts in turn
// and returns its layout. With no starts, the working directory and the
// executable's directory are tried.
func Discover(name string, starts ...string) (*Layout, error) {
	if len(starts) == 0 {
		if wd, err := os.Getwd(); err == nil {
			starts = append(starts, wd)
		}
		if exe, err := os.Executable(); err == nil {
			starts = append(starts, filepath.Dir(exe))
		}
	}

	err := fmt.Errorf("%w: no start directory", ErrRootNotFound)
	for _, start := range starts {
		var root string
		root, err = FindRoot(start, name, DefaultMaxParents)
		if err == nil {
			return NewLayout(root)
		}
	}
	return nil, err
}

// RootName returns the configured root directory name.
func RootName() string {
	if name := os.Getenv(RootNameEnv); name != "" {
		return name
	}
	return DefaultRootName
}

// FindUp looks for file in start and each of its parents up to the
// filesystem root and returns the first match.
func FindUp(start, file string) (string, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(current, file)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, file)
		}
		current = parent
	}
}

// realpath resolves symlinks for paths that exist and cleans the rest.
func realpath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return resolveExistingPrefix(abs)
		}
		return "", err
	}
	return resolved, nil
}

// resolveExistingPrefix resolves the longest existing ancestor of p and
// re-attaches the missing tail.
func resolveExistingPrefix(p string) (string, error) {
	dir, tail := filepath.Dir(p), filepath.Base(p)
	if dir == p {
		return p, nil
	}
	resolved, err := realpath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolved, tail), nil
}
