// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// RoutingFileName is the catalog routing file written next to the artifacts.
	RoutingFileName = ".dockstore.yml"
	// ProcessDescriptor is the primary description in the default mode.
	ProcessDescriptor = "process.cwl"
	// WorkflowDescriptor is the primary description in monolithic mode.
	WorkflowDescriptor = "workflow.cwl"

	routingVersion  = "1.2"
	routingSubclass = "CWL"
)

type (
	// GenerateRequest holds the arguments of GenerateArtifacts.
	GenerateRequest struct {
		// OutputDir overrides the stored artifact directory when not empty.
		OutputDir string
		// ImageURL overrides every stored image reference when not empty.
		ImageURL   string
		Monolithic bool
	}

	// GenerateResult describes the generated artifacts.
	GenerateResult struct {
		OutputDir   string
		Image       string
		Files       []string
		RoutingFile string
	}

	routingFile struct {
		Version   string            `yaml:"version"`
		Workflows []routingWorkflow `yaml:"workflows"`
	}

	routingWorkflow struct {
		Name                  string `yaml:"name,omitempty"`
		Subclass              string `yaml:"subclass"`
		PrimaryDescriptorPath string `yaml:"primaryDescriptorPath"`
	}
)

// GenerateArtifacts writes the process descriptions of the application into
// the artifact directory and the routing file that points the catalog at the
// primary description.
func (o *Orchestrator) GenerateArtifacts(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if o.Generator == nil {
		return GenerateResult{}, errors.New("artifact generator is not configured")
	}

	store, err := o.load(OpGenerate)
	if err != nil {
		return GenerateResult{}, err
	}

	image, err := resolveImage(req.ImageURL, store.DockerURL(), store.DockerImageReference())
	if err != nil {
		return GenerateResult{}, err
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		if stored := store.CWLOutputPath(); stored != nil {
			outputDir = *stored
		}
	}
	if outputDir == "" {
		return GenerateResult{}, precondition(OpGenerate, RequireOutputDir, "no artifact output directory is configured")
	}
	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return GenerateResult{}, fmt.Errorf("create output directory: %w", err)
	}
	if err := store.SetCWLOutputPath(outputDir); err != nil {
		return GenerateResult{}, err
	}

	repo, err := o.inspect(ctx, store)
	if err != nil {
		return GenerateResult{}, err
	}

	logger := o.logger().With("output", outputDir, "image", image)
	logger.Info("generating artifacts", "monolithic", req.Monolithic)

	files, err := o.Generator.Generate(ctx, GenerateSpec{
		Repository: repo,
		Image:      image,
		OutputDir:  outputDir,
		Monolithic: req.Monolithic,
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate artifacts: %w", err)
	}

	primary := ProcessDescriptor
	if req.Monolithic {
		primary = WorkflowDescriptor
	}
	routing, err := writeRoutingFile(outputDir, repo.Name, primary)
	if err != nil {
		return GenerateResult{}, err
	}
	logger.Info("artifacts generated", "files", len(files), "primary", primary)

	return GenerateResult{
		OutputDir:   outputDir,
		Image:       image,
		Files:       files,
		RoutingFile: routing,
	}, nil
}

// resolveImage applies the image precedence: explicit URL, pushed reference,
// built reference.
func resolveImage(override string, pushed, built *string) (string, error) {
	switch {
	case override != "":
		return override, nil
	case pushed != nil && *pushed != "":
		return *pushed, nil
	case built != nil && *built != "":
		return *built, nil
	default:
		return "", precondition(OpGenerate, RequireImage,
			"no image has been built or pushed, run build_docker or pass an image URL")
	}
}

func writeRoutingFile(dir, name, primary string) (string, error) {
	doc := routingFile{
		Version: routingVersion,
		Workflows: []routingWorkflow{{
			Name:                  name,
			Subclass:              routingSubclass,
			PrimaryDescriptorPath: "/" + primary,
		}},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode routing file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode routing file: %w", err)
	}

	path := filepath.Join(dir, RoutingFileName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write routing file: %w", err)
	}
	return path, nil
}
