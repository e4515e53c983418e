// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"appgen-cli/internal/catalog"
	"appgen-cli/internal/config"
	"appgen-cli/internal/container"
	"appgen-cli/internal/cwl"
	"appgen-cli/internal/ecr"
	"appgen-cli/internal/image"
	"appgen-cli/internal/logging"
	"appgen-cli/internal/pipeline"
	"appgen-cli/internal/source"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// DefaultStateDirName is the state directory used when --state_directory is not given.
const DefaultStateDirName = ".unity_app_gen"

type (
	// App wires CLI services and shared dependencies. It is the composition root
	// of the CLI layer: command handlers load a Session through it and run the
	// pipeline stages on an orchestrator whose services come from Collaborators.
	App struct {
		Config        ConfigProvider
		Collaborators Collaborators
		stdout        io.Writer
		stderr        io.Writer
		opts          rootOptions
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config        ConfigProvider
		Collaborators Collaborators
		Stdout        io.Writer
		Stderr        io.Writer
	}

	// rootOptions holds the global flags.
	rootOptions struct {
		stateDir   string
		verbose    bool
		configFile string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// Collaborators builds the services a pipeline stage needs. Each method is
	// called only by the commands that use the service, so a missing container
	// engine does not prevent init or build_cwl from running.
	Collaborators interface {
		Source(s *Session) pipeline.SourceLocalizer
		Builder(ctx context.Context, s *Session) (pipeline.ImageBuilder, error)
		Pusher(ctx context.Context, s *Session) (pipeline.ImagePusher, error)
		Cloud(ctx context.Context, s *Session) (pipeline.CloudRegistry, error)
		Generator(s *Session) pipeline.ArtifactGenerator
		Catalog(s *Session, apiURL, token string) (pipeline.Catalog, error)
	}

	// Session is the per-invocation context of a command.
	Session struct {
		Config     *config.Config
		ConfigPath string
		Logger     *log.Logger
		RunID      string
		Verbose    bool
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// defaultCollaborators builds the production services. The container
	// engine is resolved once and shared by the builder, pusher and registry.
	defaultCollaborators struct {
		engine container.Engine
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Collaborators == nil {
		deps.Collaborators = &defaultCollaborators{}
	}

	return &App{
		Config:        deps.Config,
		Collaborators: deps.Collaborators,
		stdout:        deps.Stdout,
		stderr:        deps.Stderr,
	}, nil
}

// session loads the configuration and builds the invocation logger.
func (a *App) session(ctx context.Context) (*Session, error) {
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.opts.configFile})
	if err != nil {
		return nil, err
	}

	verbose := a.opts.verbose || cfg.UI.Verbose
	logger, runID := logging.WithRunID(logging.New(a.stderr, verbose))
	logger.Debug("configuration loaded", "path", path, "engine", cfg.ContainerEngine)

	return &Session{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
		RunID:      runID,
		Verbose:    verbose,
		Stdout:     a.stdout,
		Stderr:     a.stderr,
	}, nil
}

// stateDir resolves the state directory: the --state_directory flag, then
// <destination>/.unity_app_gen when a destination is known, then
// ./.unity_app_gen.
func (a *App) stateDir(destination string) (string, error) {
	dir := a.opts.stateDir
	switch {
	case dir != "":
	case destination != "":
		dir = filepath.Join(destination, DefaultStateDirName)
	default:
		dir = DefaultStateDirName
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve state directory %s: %w", dir, err)
	}
	return abs, nil
}

// orchestrator returns an orchestrator for a stage after init. The state
// directory is checked before any service is built so that stages invoked
// out of order fail on the missing state rather than on a missing tool.
func (a *App) orchestrator(s *Session) (*pipeline.Orchestrator, error) {
	dir, err := a.stateDir("")
	if err != nil {
		return nil, err
	}
	orch := &pipeline.Orchestrator{StateDir: dir, Logger: s.Logger}
	if _, err := orch.Load(); err != nil {
		return nil, err
	}
	return orch, nil
}

// run executes fn with a fresh session and turns its error into a rendered
// ExitError.
func (a *App) run(cmd *cobra.Command, fn func(ctx context.Context, s *Session) error) error {
	ctx := contextOf(cmd)

	verbose := a.opts.verbose
	s, err := a.session(ctx)
	if err == nil {
		verbose = s.Verbose
		err = fn(ctx, s)
	}
	if err == nil {
		return nil
	}
	return a.fail(err, verbose, verbose)
}

// fail renders err, followed by its guide when showGuide is set, and returns
// the matching ExitError.
func (a *App) fail(err error, verbose, showGuide bool) error {
	code, issueID, msg := classifyError(err, verbose)
	fmt.Fprint(a.stderr, msg)
	if showGuide && issueID != 0 {
		renderGuide(a.stderr, issueID)
	}
	return &ExitError{Code: code, Err: err}
}

func (c *defaultCollaborators) Source(s *Session) pipeline.SourceLocalizer {
	return source.NewLocalizer(s.Logger)
}

func (c *defaultCollaborators) containerEngine(s *Session) (container.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	engine, err := container.NewEngine(container.EngineType(s.Config.ContainerEngine))
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("container engine selected", "engine", engine.Name())
	c.engine = engine
	return engine, nil
}

func (c *defaultCollaborators) Builder(_ context.Context, s *Session) (pipeline.ImageBuilder, error) {
	engine, err := c.containerEngine(s)
	if err != nil {
		return nil, err
	}
	opts := []image.BuilderOption{
		image.WithRepo2Docker(s.Config.Build.Repo2DockerBinary),
		image.WithBuilderLogger(s.Logger),
	}
	if s.Verbose {
		opts = append(opts, image.WithBuildOutput(s.Stderr, s.Stderr))
	}
	return image.NewBuilder(engine, opts...), nil
}

func (c *defaultCollaborators) Pusher(_ context.Context, s *Session) (pipeline.ImagePusher, error) {
	engine, err := c.containerEngine(s)
	if err != nil {
		return nil, err
	}
	opts := []image.PusherOption{
		image.WithRetry(s.Config.Push.MaxAttempts, s.Config.Push.Backoff),
		image.WithPusherLogger(s.Logger),
	}
	if s.Verbose {
		opts = append(opts, image.WithPushOutput(s.Stderr, s.Stderr))
	}
	return image.NewPusher(engine, opts...), nil
}

func (c *defaultCollaborators) Cloud(ctx context.Context, s *Session) (pipeline.CloudRegistry, error) {
	engine, err := c.containerEngine(s)
	if err != nil {
		return nil, err
	}
	registry, err := ecr.New(ctx, s.Config.ECR.Region, engine, ecr.WithLogger(s.Logger))
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func (c *defaultCollaborators) Generator(s *Session) pipeline.ArtifactGenerator {
	return cwl.NewGenerator(
		cwl.WithNotebookDir(s.Config.CWL.NotebookDir),
		cwl.WithStageImage(s.Config.CWL.StageImage),
		cwl.WithLogger(s.Logger),
	)
}

func (c *defaultCollaborators) Catalog(s *Session, apiURL, token string) (pipeline.Catalog, error) {
	client, err := catalog.New(apiURL, token,
		catalog.WithUserAgent("appgen/"+Version),
		catalog.WithLogger(s.Logger),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}
