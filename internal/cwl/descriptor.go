// SPDX-License-Identifier: MPL-2.0

package cwl

import (
	"encoding/json"
	"strings"

	"appgen-cli/internal/notebook"
)

type (
	// Descriptor is the OGC API Processes description of the application.
	Descriptor struct {
		ID                 string          `json:"id"`
		Title              string          `json:"title"`
		Description        string          `json:"description,omitempty"`
		Version            string          `json:"version"`
		JobControlOptions  []string        `json:"jobControlOptions"`
		OutputTransmission []string        `json:"outputTransmission"`
		Inputs             map[string]Port `json:"inputs"`
		Outputs            map[string]Port `json:"outputs"`
		ExecutionUnit      ExecutionUnit   `json:"executionUnit"`
		Links              []Link          `json:"links"`
	}

	// Port describes one process input or output.
	Port struct {
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
		Schema      Schema `json:"schema"`
	}

	// Schema is the JSON schema of a port value.
	Schema struct {
		Type     string `json:"type"`
		Format   string `json:"format,omitempty"`
		Default  any    `json:"default,omitempty"`
		Nullable bool   `json:"nullable,omitempty"`
	}

	// ExecutionUnit names the container running the process.
	ExecutionUnit struct {
		Type  string `json:"type"`
		Image string `json:"image"`
	}

	// Link references a related document.
	Link struct {
		Href  string `json:"href"`
		Rel   string `json:"rel"`
		Type  string `json:"type"`
		Title string `json:"title,omitempty"`
	}
)

func newDescriptor(app *application, image string) Descriptor {
	d := Descriptor{
		ID:                 app.name(),
		Title:              app.name(),
		Description:        app.notebook.Description(),
		Version:            version(image, app.repo.Commit),
		JobControlOptions:  []string{"async-execute"},
		OutputTransmission: []string{"reference"},
		Inputs:             map[string]Port{},
		Outputs:            map[string]Port{},
		ExecutionUnit:      ExecutionUnit{Type: "docker", Image: image},
		Links: []Link{{
			Href:  ProcessFile,
			Rel:   "http://www.opengis.net/def/rel/ogc/1.0/ogc-app-pkg",
			Type:  "application/cwl+yaml",
			Title: "Application package",
		}},
	}

	for _, p := range app.params {
		port := Port{Title: p.Name, Description: p.Description, Schema: schema(p)}
		if p.Output() {
			d.Outputs[p.Name] = port
		} else {
			d.Inputs[p.Name] = port
		}
	}
	return d
}

func schema(p notebook.Parameter) Schema {
	typ, format := schemaType(p)
	s := Schema{Type: typ, Format: format}
	if p.Kind == notebook.KindNone {
		s.Nullable = true
		return s
	}
	if !p.Output() && !isSTAC(p) {
		s.Default = p.Value()
	}
	return s
}

// version is the image tag, else the short commit, else "latest".
func version(image, commit string) string {
	name := image[strings.LastIndex(image, "/")+1:]
	if i := strings.LastIndex(name, ":"); i >= 0 && i+1 < len(name) {
		return name[i+1:]
	}
	if len(commit) >= 7 {
		return commit[:7]
	}
	if commit != "" {
		return commit
	}
	return "latest"
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
