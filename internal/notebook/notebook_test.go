// SPDX-License-Identifier: MPL-2.0

package notebook

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"appgen-cli/internal/testutil"
)

func TestFind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   []string
		want    string
		wantErr bool
	}{
		{"preferred", []string{"a.ipynb", "process.ipynb", "z.ipynb"}, "process.ipynb", false},
		{"first sorted", []string{"zeta.ipynb", "Alpha.ipynb", "beta.ipynb"}, "Alpha.ipynb", false},
		{"ignores other files", []string{"README.md", "run.py", "main.ipynb"}, "main.ipynb", false},
		{"none", []string{"README.md"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			for _, f := range tt.files {
				testutil.MustWriteFile(t, filepath.Join(dir, f), "{}")
			}
			testutil.MustMkdirAll(t, filepath.Join(dir, "nested.ipynb"), 0o755)

			got, err := Find(dir)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Find() error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if got != filepath.Join(dir, tt.want) {
				t.Errorf("Find() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_AppNotebook(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "process.ipynb")
	testutil.MustWriteFile(t, path, testutil.AppNotebook)

	nb, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if nb.Name() != "process" {
		t.Errorf("Name() = %q", nb.Name())
	}
	if nb.Description() != "Example application" {
		t.Errorf("Description() = %q", nb.Description())
	}
	if nb.Metadata.KernelSpec.Name != "python3" || nb.Format != 4 {
		t.Errorf("metadata = %+v, nbformat %d", nb.Metadata, nb.Format)
	}

	params, err := nb.Parameters()
	if err != nil {
		t.Fatalf("Parameters() error = %v", err)
	}

	want := []struct {
		name   string
		kind   Kind
		value  any
		desc   string
		output bool
	}{
		{"input_stac_collection_file", KindString, "/unity/input/collection.json", "STAC input catalog", false},
		{"threshold", KindFloat, 0.5, "", false},
		{"iterations", KindInt, int64(10), "", false},
		{"verbose", KindBool, false, "", false},
		{"label", KindString, "sample", "", false},
		{"output_collection_dir", KindString, "/unity/output", "results directory", true},
	}
	if len(params) != len(want) {
		t.Fatalf("Parameters() returned %d, want %d: %+v", len(params), len(want), params)
	}
	for i, w := range want {
		p := params[i]
		if p.Name != w.name || p.Kind != w.kind || p.Description != w.desc || p.Output() != w.output {
			t.Errorf("param %d = %+v, want %+v", i, p, w)
		}
		if !reflect.DeepEqual(p.Value(), w.value) {
			t.Errorf("param %s Value() = %#v, want %#v", p.Name, p.Value(), w.value)
		}
	}
	if !params[0].Input() {
		t.Error("input_ parameter should report Input()")
	}
}

func TestLoad_SourceAsString(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nb.ipynb")
	testutil.MustWriteFile(t, path, `{"cells": [{"cell_type": "code", "metadata": {"tags": ["injected", "parameters"]}, "source": "a = 1\nb = 'x'\n"}], "metadata": {}, "nbformat": 4}`)

	nb, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	params, err := nb.Parameters()
	if err != nil {
		t.Fatalf("Parameters() error = %v", err)
	}
	if len(params) != 2 || params[0].Name != "a" || params[1].Value() != "x" {
		t.Errorf("Parameters() = %+v", params)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.ipynb")
	testutil.MustWriteFile(t, bad, `{"cells": [{"cell_type": "code", "source": 12}]}`)
	if _, err := Load(bad); err == nil {
		t.Error("Load() should reject a non-text cell source")
	}

	if _, err := Load(filepath.Join(dir, "missing.ipynb")); err == nil {
		t.Error("Load() of a missing file should fail")
	}

	untagged := filepath.Join(dir, "untagged.ipynb")
	testutil.MustWriteFile(t, untagged, `{"cells": [{"cell_type": "markdown", "metadata": {"tags": ["parameters"]}, "source": "a = 1"}], "nbformat": 4}`)
	nb, err := Load(untagged)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := nb.Parameters(); !errors.Is(err, ErrNoParametersCell) {
		t.Errorf("Parameters() error = %v, want ErrNoParametersCell", err)
	}
}

func TestParseParameters(t *testing.T) {
	t.Parallel()

	source := `# Parameters
import os

count: int = 1_000  # how many
ratio = 1e-3
path = os.path.join("a", "b")
flag = True
nothing = None
hashy = "a # not a comment"
escaped = 'it\'s'
items = [
    1,
    2,  # two
]
pair = (1, "a")
config = {"a": 1, "b": [True, None]}
if count == 3: pass
print(count)
count += 1
`

	params := ParseParameters(source)

	type expect struct {
		kind  Kind
		value any
	}
	want := map[string]expect{
		"count":   {KindInt, int64(1000)},
		"ratio":   {KindFloat, 0.001},
		"path":    {KindUnknown, `os.path.join("a", "b")`},
		"flag":    {KindBool, true},
		"nothing": {KindNone, nil},
		"hashy":   {KindString, "a # not a comment"},
		"escaped": {KindString, "it's"},
		"items":   {KindList, []any{1, 2}},
		"pair":    {KindList, []any{1, "a"}},
		"config":  {KindDict, map[string]any{"a": 1, "b": []any{true, nil}}},
	}

	if len(params) != len(want) {
		t.Fatalf("ParseParameters() returned %d params, want %d: %+v", len(params), len(want), params)
	}
	for _, p := range params {
		w, ok := want[p.Name]
		if !ok {
			t.Errorf("unexpected parameter %q", p.Name)
			continue
		}
		if p.Kind != w.kind {
			t.Errorf("%s Kind = %s, want %s", p.Name, p.Kind, w.kind)
		}
		if !reflect.DeepEqual(p.Value(), w.value) {
			t.Errorf("%s Value() = %#v, want %#v", p.Name, p.Value(), w.value)
		}
	}

	if params[0].Annotation != "int" || params[0].Description != "how many" {
		t.Errorf("count = %+v", params[0])
	}
}

func TestParseParameters_EscapedQuotes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		source      string
		literal     string
		value       any
		description string
	}{
		{
			name:        "escaped double quote before hash",
			source:      `s = "a\"b # c"  # desc`,
			literal:     `"a\"b # c"`,
			value:       `a"b # c`,
			description: "desc",
		},
		{
			name:        "escaped single quote before hash",
			source:      `s = 'it\'s # here'  # desc`,
			literal:     `'it\'s # here'`,
			value:       "it's # here",
			description: "desc",
		},
		{
			name:        "escaped backslash closes string",
			source:      `s = "dir\\"  # trailing`,
			literal:     `"dir\\"`,
			value:       `dir\`,
			description: "trailing",
		},
		{
			name:    "escaped quote beside bracket",
			source:  "s = [\"a\\\"[\", \"b\"]\nt = 1",
			literal: `["a\"[", "b"]`,
			value:   []any{`a"[`, "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params := ParseParameters(tt.source)
			if len(params) == 0 || params[0].Name != "s" {
				t.Fatalf("ParseParameters() = %+v, want parameter s first", params)
			}
			p := params[0]
			if p.Literal != tt.literal {
				t.Errorf("Literal = %q, want %q", p.Literal, tt.literal)
			}
			if !reflect.DeepEqual(p.Value(), tt.value) {
				t.Errorf("Value() = %#v, want %#v", p.Value(), tt.value)
			}
			if p.Description != tt.description {
				t.Errorf("Description = %q, want %q", p.Description, tt.description)
			}
		})
	}
}

func TestInferKind(t *testing.T) {
	t.Parallel()

	tests := map[string]Kind{
		"0":        KindInt,
		"-12":      KindInt,
		"0x1F":     KindInt,
		"3.14":     KindFloat,
		"-2.5e10":  KindFloat,
		"inf":      KindUnknown,
		"nan":      KindUnknown,
		`"x"`:      KindString,
		`r"\d+"`:   KindString,
		"'x":       KindUnknown,
		"False":    KindBool,
		"None":     KindNone,
		"[]":       KindList,
		"{}":       KindDict,
		"np.zeros": KindUnknown,
	}
	for literal, want := range tests {
		if got := InferKind(literal); got != want {
			t.Errorf("InferKind(%q) = %s, want %s", literal, got, want)
		}
	}
}
