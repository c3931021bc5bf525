package program

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// AllTemplates selects every template file in a directory.
const AllTemplates = "all"

// #region template-file
// TemplateFile is one class of templates, e.g. "2_remove" for 2_remove.json.
type TemplateFile struct {
	Class     string
	Templates []Template
}

// ReadTemplates decodes and validates a JSON list of templates.
func ReadTemplates(r io.Reader) ([]Template, error) {
	var ts []Template
	if err := json.NewDecoder(r).Decode(&ts); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	for i := range ts {
		if err := ts[i].Validate(); err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
	}
	return ts, nil
}

// LoadTemplateFile reads one template file.
func LoadTemplateFile(path string) (TemplateFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return TemplateFile{}, fmt.Errorf("open templates: %w", err)
	}
	defer f.Close()
	ts, err := ReadTemplates(f)
	if err != nil {
		return TemplateFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return TemplateFile{
		Class:     strings.TrimSuffix(filepath.Base(path), ".json"),
		Templates: ts,
	}, nil
}

// #endregion template-file

// #region template-dir
// LoadTemplateDir reads the selected template classes from dir, sorted by
// class name. A selection of ["all"] (or none) loads every .json file.
func LoadTemplateDir(dir string, selected []string) ([]TemplateFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}
	all := len(selected) == 0 || (len(selected) == 1 && selected[0] == AllTemplates)

	var files []TemplateFile
	found := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		class := strings.TrimSuffix(e.Name(), ".json")
		if !all && !slices.Contains(selected, class) {
			continue
		}
		tf, err := LoadTemplateFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		found[class] = true
		files = append(files, tf)
	}
	if !all {
		for _, want := range selected {
			if !found[want] {
				return nil, fmt.Errorf("template class %q not found in %s", want, dir)
			}
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Class < files[j].Class })
	return files, nil
}

// #endregion template-dir

// #region boolean-filter
// FunctionClassifier reports whether a function produces a boolean.
type FunctionClassifier interface {
	IsBoolean(name string) bool
}

// IsBoolean reports whether the template's final node produces a boolean.
func (t *Template) IsBoolean(fc FunctionClassifier) bool {
	if len(t.Nodes) == 0 {
		return false
	}
	last := t.Nodes[len(t.Nodes)-1]
	return fc.IsBoolean(last.Type()) || fc.IsBoolean(last.Kind.String())
}

// WithoutBoolean drops templates whose answer is a boolean. Kept templates
// carry their original file position.
func (tf TemplateFile) WithoutBoolean(fc FunctionClassifier) []IndexedTemplate {
	var out []IndexedTemplate
	for i, t := range tf.Templates {
		if t.IsBoolean(fc) {
			continue
		}
		out = append(out, IndexedTemplate{Index: i, Template: t})
	}
	return out
}

// Indexed pairs every template with its position in the file.
func (tf TemplateFile) Indexed() []IndexedTemplate {
	out := make([]IndexedTemplate, len(tf.Templates))
	for i, t := range tf.Templates {
		out[i] = IndexedTemplate{Index: i, Template: t}
	}
	return out
}

// IndexedTemplate is a template with its position in its file.
type IndexedTemplate struct {
	Index    int
	Template Template
}

// #endregion boolean-filter
