package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadLines returns the lines of a text file. Line terminators are kept
// unless clearEOL is set.
func (g *Gateway) ReadLines(clearEOL bool, segments ...string) ([]string, error) {
	path := g.Path(segments...)
	f, err := os.Open(path) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			if clearEOL {
				line = strings.ReplaceAll(line, "\n", "")
			}
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
}

// WriteString writes s to a text file, replacing it.
func (g *Gateway) WriteString(s string, segments ...string) error {
	path := g.Path(segments...)
	if err := ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0o644) //nolint:gosec // G306: plain text output
}
