package persistence

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
)

// GobStore serializes values with encoding/gob. Values holding interface
// fields must have their concrete types registered with gob.Register.
type GobStore struct{}

// WriteObject encodes v to path, replacing the file.
func (GobStore) WriteObject(v any, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadObject decodes the blob at path into v, which must be a pointer.
func (GobStore) ReadObject(v any, path string) error {
	f, err := os.Open(path) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// WriteObject stores an arbitrary value, typically a trained model.
func (g *Gateway) WriteObject(v any, segments ...string) error {
	return GobStore{}.WriteObject(v, g.Path(segments...))
}

// ReadObject loads a value stored with WriteObject into v.
func (g *Gateway) ReadObject(v any, segments ...string) error {
	return GobStore{}.ReadObject(v, g.Path(segments...))
}
