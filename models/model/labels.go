package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LabelTable maps class indices to human-readable labels.
type LabelTable struct {
	names map[int]string
}

// NewLabelTable builds a table from an index to name map.
func NewLabelTable(names map[int]string) *LabelTable {
	t := &LabelTable{names: make(map[int]string, len(names))}
	for k, v := range names {
		t.names[k] = v
	}
	return t
}

// DefaultTableLabels returns the labels of the document table detector.
func DefaultTableLabels() *LabelTable {
	return NewLabelTable(map[int]string{0: "table", 1: "table rotated"})
}

// Name returns the label for idx, or "unknown_<idx>".
func (t *LabelTable) Name(idx int) string {
	if name, ok := t.names[idx]; ok {
		return name
	}
	return fmt.Sprintf("unknown_%d", idx)
}

// Len returns the number of known labels.
func (t *LabelTable) Len() int {
	return len(t.names)
}

// Names returns the labels ordered by index.
func (t *LabelTable) Names() []string {
	idx := make([]int, 0, len(t.names))
	for k := range t.names {
		idx = append(idx, k)
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = t.names[k]
	}
	return out
}

type labelFile struct {
	ID2Label map[string]string `json:"id2label" yaml:"id2label"`
}

// LoadLabelTable reads the id2label map from a model config file. Files
// ending in .yaml or .yml are parsed as YAML, anything else as JSON.
//
// Arguments:
//   - path: The config file, typically the config.json shipped with the model.
//
// Returns:
//   - *LabelTable: The parsed labels.
//   - error: If the file is unreadable, malformed or has no id2label entries.
func LoadLabelTable(path string) (*LabelTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading labels")
	}

	var f labelFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing labels %s", path)
	}
	if len(f.ID2Label) == 0 {
		return nil, fmt.Errorf("no id2label entries in %s", path)
	}

	names := make(map[int]string, len(f.ID2Label))
	for k, v := range f.ID2Label {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, errors.Wrapf(err, "label key %q is not an integer", k)
		}
		names[idx] = v
	}
	return NewLabelTable(names), nil
}
