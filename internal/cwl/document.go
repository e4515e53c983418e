// SPDX-License-Identifier: MPL-2.0

package cwl

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Version is the CWL version of every generated document.
const Version = "v1.2"

const (
	classTool     = "CommandLineTool"
	classWorkflow = "Workflow"
)

type (
	// Entry is one key of an Ordered mapping.
	Entry[T any] struct {
		Key   string
		Value T
	}

	// Ordered is a YAML mapping that keeps insertion order. CWL documents are
	// read by people; inputs appear in notebook order.
	Ordered[T any] []Entry[T]

	// Tool is a CWL CommandLineTool.
	Tool struct {
		CWLVersion   string              `yaml:"cwlVersion"`
		Class        string              `yaml:"class"`
		Label        string              `yaml:"label,omitempty"`
		Doc          string              `yaml:"doc,omitempty"`
		Requirements Requirements        `yaml:"requirements"`
		BaseCommand  []string            `yaml:"baseCommand"`
		Arguments    []Binding           `yaml:"arguments,omitempty"`
		Inputs       Ordered[ToolInput]  `yaml:"inputs"`
		Outputs      Ordered[ToolOutput] `yaml:"outputs"`
		Stdout       string              `yaml:"stdout,omitempty"`
	}

	// Workflow is a CWL Workflow.
	Workflow struct {
		CWLVersion   string                  `yaml:"cwlVersion"`
		Class        string                  `yaml:"class"`
		Label        string                  `yaml:"label,omitempty"`
		Doc          string                  `yaml:"doc,omitempty"`
		Requirements Requirements            `yaml:"requirements,omitempty"`
		Inputs       Ordered[ToolInput]      `yaml:"inputs"`
		Outputs      Ordered[WorkflowOutput] `yaml:"outputs"`
		Steps        Ordered[Step]           `yaml:"steps"`
	}

	// Requirements lists the CWL requirements in use.
	Requirements struct {
		Docker           *DockerRequirement `yaml:"DockerRequirement,omitempty"`
		InlineJavascript *struct{}          `yaml:"InlineJavascriptRequirement,omitempty"`
		Network          *NetworkAccess     `yaml:"NetworkAccess,omitempty"`
		StepInput        *struct{}          `yaml:"StepInputExpressionRequirement,omitempty"`
		WorkDir          *InitialWorkDir    `yaml:"InitialWorkDirRequirement,omitempty"`
	}

	// DockerRequirement names the image a tool runs in.
	DockerRequirement struct {
		DockerPull string `yaml:"dockerPull"`
	}

	// NetworkAccess grants network access to a tool.
	NetworkAccess struct {
		NetworkAccess bool `yaml:"networkAccess"`
	}

	// InitialWorkDir stages entries into the working directory.
	InitialWorkDir struct {
		Listing []Dirent `yaml:"listing"`
	}

	// Dirent is one staged file.
	Dirent struct {
		EntryName string `yaml:"entryname"`
		Entry     string `yaml:"entry"`
		Writable  bool   `yaml:"writable,omitempty"`
	}

	// Binding maps a value to the command line.
	Binding struct {
		Position  int    `yaml:"position,omitempty"`
		Prefix    string `yaml:"prefix,omitempty"`
		ValueFrom string `yaml:"valueFrom,omitempty"`
	}

	// ToolInput is an input parameter of a tool or workflow.
	ToolInput struct {
		Type         string   `yaml:"type"`
		Label        string   `yaml:"label,omitempty"`
		Doc          string   `yaml:"doc,omitempty"`
		Default      any      `yaml:"default,omitempty"`
		InputBinding *Binding `yaml:"inputBinding,omitempty"`
	}

	// ToolOutput is an output parameter of a tool.
	ToolOutput struct {
		Type          string         `yaml:"type"`
		Doc           string         `yaml:"doc,omitempty"`
		OutputBinding *OutputBinding `yaml:"outputBinding,omitempty"`
	}

	// OutputBinding collects output files by glob.
	OutputBinding struct {
		Glob string `yaml:"glob"`
	}

	// WorkflowOutput is an output of a workflow, taken from a step.
	WorkflowOutput struct {
		Type         string `yaml:"type"`
		OutputSource string `yaml:"outputSource"`
	}

	// Step runs a tool inside a workflow.
	Step struct {
		Run string          `yaml:"run"`
		In  Ordered[string] `yaml:"in"`
		Out []string        `yaml:"out"`
	}
)

// Set appends key, or replaces its value when present.
func (o *Ordered[T]) Set(key string, value T) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Entry[T]{Key: key, Value: value})
}

// Get returns the value of key.
func (o Ordered[T]) Get(key string) (T, bool) {
	for _, e := range o {
		if e.Key == key {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// Keys returns the keys in order.
func (o Ordered[T]) Keys() []string {
	keys := make([]string, len(o))
	for i, e := range o {
		keys[i] = e.Key
	}
	return keys
}

// MarshalYAML renders the entries as a mapping in insertion order.
func (o Ordered[T]) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range o {
		var value yaml.Node
		if err := value.Encode(e.Value); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", e.Key, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key}, &value)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping keeping its order.
func (o *Ordered[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	*o = (*o)[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value T
		if err := node.Content[i+1].Decode(&value); err != nil {
			return err
		}
		*o = append(*o, Entry[T]{Key: node.Content[i].Value, Value: value})
	}
	return nil
}

// Encode renders a CWL document with a two-space indent.
func Encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
