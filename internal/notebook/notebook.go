// SPDX-License-Identifier: MPL-2.0

// Package notebook reads Jupyter notebooks and the parameters they declare.
//
// Parameters live in the code cell tagged "parameters", the papermill
// convention. Each line of the form
//
//	name = literal  # description
//
// declares one parameter; its kind is inferred from the literal.
package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// PreferredName is chosen over every other notebook in the repository root.
	PreferredName = "process.ipynb"

	// ParametersTag marks the cell holding the parameter declarations.
	ParametersTag = "parameters"

	// OutputPrefix marks parameters that name process outputs.
	OutputPrefix = "output_"

	// InputPrefix marks parameters that name process inputs.
	InputPrefix = "input_"

	ext = ".ipynb"
)

var (
	// ErrNotFound is returned when a repository holds no notebook.
	ErrNotFound = errors.New("no notebook found")

	// ErrNoParametersCell is returned when no code cell carries the parameters tag.
	ErrNoParametersCell = errors.New(`no cell tagged "parameters"`)
)

type (
	// Notebook is the subset of the nbformat 4 document used here.
	Notebook struct {
		Path     string   `json:"-"`
		Cells    []Cell   `json:"cells"`
		Metadata Metadata `json:"metadata"`
		Format   int      `json:"nbformat"`
	}

	// Cell is a notebook cell.
	Cell struct {
		Type     string       `json:"cell_type"`
		Metadata CellMetadata `json:"metadata"`
		Source   Source       `json:"source"`
	}

	// CellMetadata holds the cell tags.
	CellMetadata struct {
		Tags []string `json:"tags,omitempty"`
	}

	// Metadata is the notebook level metadata.
	Metadata struct {
		KernelSpec struct {
			Name        string `json:"name"`
			DisplayName string `json:"display_name"`
			Language    string `json:"language"`
		} `json:"kernelspec"`
	}

	// Source is cell text. nbformat stores it either as one string or as a
	// list of lines.
	Source string
)

// UnmarshalJSON accepts both a string and a list of strings.
func (s *Source) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Source(text)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("cell source must be a string or a list of strings: %w", err)
	}
	*s = Source(strings.Join(lines, ""))
	return nil
}

// Find returns the notebook of the repository at dir: process.ipynb when
// present, otherwise the first notebook in lexical order. Only the top level
// is searched.
func Find(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		if e.Name() == PreferredName {
			return filepath.Join(dir, PreferredName), nil
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNotFound, dir)
	}
	slices.Sort(names)
	return filepath.Join(dir, names[0]), nil
}

// Load parses the notebook at path.
func Load(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading notebook: %w", err)
	}
	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("parsing notebook %s: %w", path, err)
	}
	nb.Path = path
	return &nb, nil
}

// Name returns the notebook file name without extension.
func (nb *Notebook) Name() string {
	return strings.TrimSuffix(filepath.Base(nb.Path), filepath.Ext(nb.Path))
}

// Description returns the first heading or line of the first markdown cell.
func (nb *Notebook) Description() string {
	for _, c := range nb.Cells {
		if c.Type != "markdown" {
			continue
		}
		for line := range strings.SplitSeq(string(c.Source), "\n") {
			if line = strings.TrimSpace(strings.TrimLeft(line, "#")); line != "" {
				return line
			}
		}
	}
	return ""
}

// ParametersCell returns the first code cell tagged "parameters".
func (nb *Notebook) ParametersCell() (*Cell, error) {
	for i := range nb.Cells {
		c := &nb.Cells[i]
		if c.Type == "code" && slices.Contains(c.Metadata.Tags, ParametersTag) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoParametersCell, nb.Path)
}

// Parameters returns the declarations of the parameters cell.
func (nb *Notebook) Parameters() ([]Parameter, error) {
	cell, err := nb.ParametersCell()
	if err != nil {
		return nil, err
	}
	return ParseParameters(string(cell.Source)), nil
}
