package scene

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// #region metadata-types
// Function describes one program operation in the metadata file.
type Function struct {
	Name       string   `json:"name"`
	Inputs     []string `json:"inputs"`
	SideInputs []string `json:"side_inputs"`
	Output     string   `json:"output"`
}

// Metadata lists legal attribute values and the known program functions.
type Metadata struct {
	Dataset   string              `json:"dataset"`
	Types     map[string][]string `json:"types"`
	Functions []Function          `json:"functions"`

	byName map[string]Function
}

// #endregion metadata-types

// #region load
// ReadMetadata decodes metadata and checks that the extended primitives the
// generator expands (transform, remove) are declared.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	var m Metadata
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := m.index(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadMetadata reads a metadata file from disk.
func LoadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()
	return ReadMetadata(f)
}

// NewMetadata builds metadata in code, mostly for tests and the gRPC service.
func NewMetadata(dataset string, types map[string][]string, functions []Function) (*Metadata, error) {
	m := &Metadata{Dataset: dataset, Types: types, Functions: functions}
	if err := m.index(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metadata) index() error {
	m.byName = make(map[string]Function, len(m.Functions))
	for _, f := range m.Functions {
		m.byName[f.Name] = f
	}
	for _, required := range []string{"transform", "remove"} {
		if _, ok := m.byName[required]; !ok {
			return fmt.Errorf("metadata is missing the %q function", required)
		}
	}
	return nil
}

// #endregion load

// #region lookups
// Values returns the legal values for an attribute type.
func (m *Metadata) Values(a AttributeType) []string {
	return m.Types[string(a)]
}

// Function looks a function up by name.
func (m *Metadata) Function(name string) (Function, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// IsBoolean reports whether the named function produces a Bool.
func (m *Metadata) IsBoolean(name string) bool {
	f, ok := m.byName[name]
	return ok && f.Output == "Bool"
}

// AttributeWords returns every legal attribute value plus its plural form.
func (m *Metadata) AttributeWords() map[string]bool {
	words := make(map[string]bool)
	for _, vs := range m.Types {
		for _, v := range vs {
			words[v] = true
			words[v+"s"] = true
		}
	}
	return words
}

// TypeNames returns the declared type names in sorted order.
func (m *Metadata) TypeNames() []string {
	names := make([]string, 0, len(m.Types))
	for k := range m.Types {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// #endregion lookups
