// SPDX-License-Identifier: MPL-2.0

package cwl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"appgen-cli/internal/issue"
	"appgen-cli/internal/logging"
	"appgen-cli/internal/notebook"
	"appgen-cli/internal/pipeline"
)

const (
	// ProcessFile is the CommandLineTool running the notebook.
	ProcessFile = "process.cwl"
	// DescriptorFile is the OGC application descriptor.
	DescriptorFile = "applicationDescriptor.json"
	// StageInFile downloads the input collection in monolithic mode.
	StageInFile = "stage_in.cwl"
	// StageOutFile uploads the results in monolithic mode.
	StageOutFile = "stage_out.cwl"
	// WorkflowFile chains stage in, process and stage out.
	WorkflowFile = "workflow.cwl"

	// DefaultNotebookDir is where repo2docker places the repository in the image.
	DefaultNotebookDir = "/home/jovyan"

	// DefaultStageImage runs the stage in and stage out tools.
	DefaultStageImage = "ghcr.io/unity-sds/unity-data-services:latest"

	// ExecutedNotebook is the executed copy papermill writes.
	ExecutedNotebook = "output_nb.ipynb"

	executedNotebookOutput = "output_notebook"
	// processOutputDir is the tool's output directory, declared when the
	// notebook has no output_ parameter of its own.
	processOutputDir = "process_output_dir"
)

type (
	// Option configures a Generator.
	Option func(*Generator)

	// Generator implements pipeline.ArtifactGenerator for notebook applications.
	Generator struct {
		notebookDir string
		stageImage  string
		logger      *log.Logger
	}

	// application is the introspected notebook of a repository.
	application struct {
		repo     pipeline.Repository
		notebook *notebook.Notebook
		params   []notebook.Parameter
	}

	artifact struct {
		name string
		doc  any
		json bool
	}
)

func (a artifact) encode() ([]byte, error) {
	if a.json {
		return encodeJSON(a.doc)
	}
	return Encode(a.doc)
}

// WithNotebookDir sets the directory holding the notebook inside the image.
func WithNotebookDir(dir string) Option {
	return func(g *Generator) {
		if dir != "" {
			g.notebookDir = dir
		}
	}
}

// WithStageImage sets the image of the staging tools.
func WithStageImage(image string) Option {
	return func(g *Generator) {
		if image != "" {
			g.stageImage = image
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a Generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{notebookDir: DefaultNotebookDir, stageImage: DefaultStageImage}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.Component(logging.Ensure(g.logger), "cwl")
	return g
}

// Parameters returns the notebook parameters with their CWL types.
func (g *Generator) Parameters(_ context.Context, repo pipeline.Repository) ([]pipeline.Parameter, error) {
	app, err := g.introspect(repo)
	if err != nil {
		return nil, err
	}

	out := make([]pipeline.Parameter, 0, len(app.params))
	for _, p := range app.params {
		out = append(out, pipeline.Parameter{
			Name:        p.Name,
			Type:        cwlType(p),
			Default:     p.Literal,
			Description: p.Description,
			Output:      p.Output(),
		})
	}
	return out, nil
}

// Generate writes the process description, the application descriptor and,
// in monolithic mode, the staging tools and the wrapping workflow. Staging
// files left by an earlier monolithic run are removed otherwise.
func (g *Generator) Generate(_ context.Context, spec pipeline.GenerateSpec) ([]string, error) {
	app, err := g.introspect(spec.Repository)
	if err != nil {
		return nil, err
	}

	docs := []artifact{
		{name: ProcessFile, doc: g.processTool(app, spec.Image)},
		{name: DescriptorFile, doc: newDescriptor(app, spec.Image), json: true},
	}

	if spec.Monolithic {
		docs = append(docs,
			artifact{name: StageInFile, doc: g.stageInTool()},
			artifact{name: StageOutFile, doc: g.stageOutTool()},
			artifact{name: WorkflowFile, doc: g.workflow(app)},
		)
	} else {
		for _, name := range []string{StageInFile, StageOutFile, WorkflowFile} {
			if err := os.Remove(filepath.Join(spec.OutputDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("removing stale %s: %w", name, err)
			}
		}
	}

	written := make([]string, 0, len(docs))
	for _, d := range docs {
		data, err := d.encode()
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", d.name, err)
		}
		p := filepath.Join(spec.OutputDir, d.name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", d.name, err)
		}
		g.logger.Debug("wrote artifact", "path", p)
		written = append(written, p)
	}
	return written, nil
}

func (g *Generator) introspect(repo pipeline.Repository) (*application, error) {
	nbPath, err := notebook.Find(repo.Dir)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("find application notebook").
			WithResource(repo.Dir).
			WithSuggestion("Add a process.ipynb notebook to the repository root").
			WithIssue(issue.NotebookNotFoundId).
			Wrap(err).
			BuildError()
	}
	nb, err := notebook.Load(nbPath)
	if err != nil {
		return nil, err
	}
	params, err := nb.Parameters()
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read notebook parameters").
			WithResource(nbPath).
			WithSuggestion(`Tag the cell declaring the parameters with "parameters"`).
			WithIssue(issue.NotebookNotFoundId).
			Wrap(err).
			BuildError()
	}
	return &application{repo: repo, notebook: nb, params: params}, nil
}

// name is the process identifier: the repository name, or the notebook name
// for a repository without one.
func (a *application) name() string {
	if a.repo.Name != "" {
		return a.repo.Name
	}
	return a.notebook.Name()
}

func (a *application) inputs() []notebook.Parameter {
	var in []notebook.Parameter
	for _, p := range a.params {
		if !p.Output() {
			in = append(in, p)
		}
	}
	return in
}

func (a *application) outputs() []notebook.Parameter {
	var out []notebook.Parameter
	for _, p := range a.params {
		if p.Output() {
			out = append(out, p)
		}
	}
	return out
}

func (g *Generator) processTool(app *application, image string) Tool {
	nbFile := filepath.Base(app.notebook.Path)
	tool := Tool{
		CWLVersion: Version,
		Class:      classTool,
		Label:      app.name(),
		Doc:        app.notebook.Description(),
		Requirements: Requirements{
			Docker:           &DockerRequirement{DockerPull: image},
			InlineJavascript: &struct{}{},
			Network:          &NetworkAccess{NetworkAccess: true},
		},
		BaseCommand: []string{"papermill", path.Join(g.notebookDir, nbFile), ExecutedNotebook, "--cwd", g.notebookDir},
	}

	for _, p := range app.outputs() {
		tool.Arguments = append(tool.Arguments, Binding{
			Prefix:    "-y",
			ValueFrom: yamlParameter(p.Name, "runtime.outdir"),
		})
		tool.Outputs.Set(p.Name, ToolOutput{
			Type:          typeDirectory,
			Doc:           p.Description,
			OutputBinding: &OutputBinding{Glob: "$(runtime.outdir)"},
		})
	}
	if len(app.outputs()) == 0 {
		tool.Outputs.Set(processOutputDir, ToolOutput{
			Type:          typeDirectory,
			Doc:           "process output directory, including the executed notebook",
			OutputBinding: &OutputBinding{Glob: "$(runtime.outdir)"},
		})
	}
	tool.Outputs.Set(executedNotebookOutput, ToolOutput{
		Type:          typeFile,
		OutputBinding: &OutputBinding{Glob: ExecutedNotebook},
	})

	for _, p := range app.inputs() {
		t := cwlType(p)
		self := "self"
		if strings.TrimSuffix(t, "?") == typeFile {
			self = "self.path"
		}
		in := ToolInput{
			Type:         t,
			Doc:          p.Description,
			InputBinding: &Binding{Prefix: "-y", ValueFrom: yamlParameter(p.Name, self)},
		}
		if t != typeFile {
			in.Default = p.Value()
		}
		tool.Inputs.Set(p.Name, in)
	}
	return tool
}

// yamlParameter renders a papermill -y argument assigning the JavaScript
// expression expr to name. JSON is a subset of YAML.
func yamlParameter(name, expr string) string {
	return fmt.Sprintf(`{"%s": $(JSON.stringify(%s))}`, name, expr)
}
