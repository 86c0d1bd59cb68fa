package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a model from a YAML file.
func LoadYAML(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	m := &Model{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	return m, nil
}

// WriteYAML writes the model to a YAML file at the given path.
func (m *Model) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling model: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// ToYAML returns the model as a YAML byte slice.
func (m *Model) ToYAML() ([]byte, error) {
	return yaml.Marshal(m)
}

// Summary returns a human-readable summary of the model.
func (m *Model) Summary() string {
	totalCols := 0
	for _, t := range m.Tables {
		totalCols += len(t.Columns)
	}
	return fmt.Sprintf("Found %d tables, %d columns, %d relationships, %d enums",
		len(m.Tables), totalCols, len(m.Relationships), len(m.Enums))
}
