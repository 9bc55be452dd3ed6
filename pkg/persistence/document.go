package persistence

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// YAMLStore reads and writes block-style YAML documents.
type YAMLStore struct {
	Indent int
}

// NewYAMLStore creates a YAML store indenting nested blocks by two spaces.
func NewYAMLStore() *YAMLStore {
	return &YAMLStore{Indent: 2}
}

// ReadDocument parses the YAML mapping at path. An empty file yields an
// empty mapping.
func (s *YAMLStore) ReadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.Decode(data, path)
}

// Decode parses YAML bytes; path is only used in error messages.
func (s *YAMLStore) Decode(data []byte, path string) (map[string]any, error) {
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// WriteDocument writes doc as YAML, replacing the file. Non-ASCII text is
// written literally.
func (s *YAMLStore) WriteDocument(doc any, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(s.Indent)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644) //nolint:gosec // G306: documents are not secrets
}

// JSONStore reads and writes indented JSON documents.
type JSONStore struct {
	Indent string
}

// NewJSONStore creates a JSON store indenting with four spaces.
func NewJSONStore() *JSONStore {
	return &JSONStore{Indent: "    "}
}

// ReadDocument parses the JSON object at path.
func (s *JSONStore) ReadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built by the gateway
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// WriteDocument writes doc as indented JSON, replacing the file.
func (s *JSONStore) WriteDocument(doc any, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", s.Indent)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // G306: documents are not secrets
}

// ReadYAML reads a YAML mapping.
func (g *Gateway) ReadYAML(segments ...string) (map[string]any, error) {
	return NewYAMLStore().ReadDocument(g.Path(segments...))
}

// WriteYAML writes doc as YAML and returns the path written.
func (g *Gateway) WriteYAML(doc any, segments ...string) (string, error) {
	path := g.Path(segments...)
	if err := NewYAMLStore().WriteDocument(doc, path); err != nil {
		return "", err
	}
	return path, nil
}

// ReadJSON reads a JSON object.
func (g *Gateway) ReadJSON(segments ...string) (map[string]any, error) {
	return NewJSONStore().ReadDocument(g.Path(segments...))
}

// WriteJSON writes doc as JSON indented with four spaces.
func (g *Gateway) WriteJSON(doc any, segments ...string) error {
	return NewJSONStore().WriteDocument(doc, g.Path(segments...))
}
