// SPDX-License-Identifier: MPL-2.0

package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"appgen-cli/internal/container"
	"appgen-cli/internal/issue"
	"appgen-cli/internal/logging"
	"appgen-cli/internal/pipeline"
)

const (
	// DefaultRepo2DockerBinary is the repo2docker executable looked up on PATH.
	DefaultRepo2DockerBinary = "jupyter-repo2docker"

	// DefaultTag is used when the repository has no commit to derive a tag from.
	DefaultTag = "latest"

	shortHashLength = 7

	labelSource   = "org.opencontainers.image.source"
	labelRevision = "org.opencontainers.image.revision"
)

// ErrDockerfileNotFound is returned when an explicitly configured Dockerfile
// does not exist, or when no Dockerfile exists and repo2docker is unavailable.
var ErrDockerfileNotFound = errors.New("dockerfile not found")

// dockerfileCandidates are searched in order, relative to the repository root.
var dockerfileCandidates = []string{
	"Dockerfile",
	filepath.Join("binder", "Dockerfile"),
	filepath.Join(".binder", "Dockerfile"),
}

type (
	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)

	// Builder builds application images with a container engine, falling back
	// to repo2docker for repositories without a Dockerfile.
	Builder struct {
		engine      container.Engine
		repo2docker string
		execCommand container.ExecCommandFunc
		lookPath    func(string) (string, error)
		stdout      io.Writer
		stderr      io.Writer
		logger      *log.Logger
	}
)

// WithRepo2Docker overrides the repo2docker executable.
func WithRepo2Docker(binary string) BuilderOption {
	return func(b *Builder) {
		if binary != "" {
			b.repo2docker = binary
		}
	}
}

// WithBuildOutput sets where build output is streamed.
func WithBuildOutput(stdout, stderr io.Writer) BuilderOption {
	return func(b *Builder) {
		b.stdout = stdout
		b.stderr = stderr
	}
}

// WithBuildExecCommand sets the exec function used for repo2docker.
func WithBuildExecCommand(fn container.ExecCommandFunc, lookPath func(string) (string, error)) BuilderOption {
	return func(b *Builder) {
		b.execCommand = fn
		b.lookPath = lookPath
	}
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(logger *log.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder on top of engine.
func NewBuilder(engine container.Engine, opts ...BuilderOption) *Builder {
	b := &Builder{
		engine:      engine,
		repo2docker: DefaultRepo2DockerBinary,
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
		stdout:      io.Discard,
		stderr:      io.Discard,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.Component(logging.Ensure(b.logger), "image")
	return b
}

// Defaults derives an image name from the repository: lower-case owner and
// name, and the short HEAD hash as tag.
func (b *Builder) Defaults(repo pipeline.Repository) pipeline.ImageName {
	tag := DefaultTag
	if len(repo.Commit) >= shortHashLength {
		tag = repo.Commit[:shortHashLength]
	}
	return pipeline.ImageName{
		Namespace:  strings.ToLower(repo.Owner),
		Repository: strings.ToLower(repo.Name),
		Tag:        tag,
	}
}

// Build builds spec.Image from the repository and returns its local reference.
func (b *Builder) Build(ctx context.Context, spec pipeline.BuildSpec) (string, error) {
	var cfg BuildConfig
	if spec.ConfigFile != "" {
		loaded, err := LoadBuildConfig(spec.ConfigFile)
		if err != nil {
			return "", err
		}
		cfg = loaded
	}

	ref := container.ImageReference(spec.Image.Reference())
	if err := ref.Validate(); err != nil {
		return "", err
	}

	dockerfile, err := FindDockerfile(spec.Repository.Dir, cfg.Dockerfile)
	switch {
	case err == nil:
		b.logger.Debug("building from dockerfile", "dockerfile", dockerfile, "engine", b.engine.Name())
		err = b.engine.Build(ctx, container.BuildOptions{
			ContextDir: spec.Repository.Dir,
			Dockerfile: dockerfile,
			Tag:        ref,
			BuildArgs:  cfg.BuildArgs,
			Labels:     labels(spec.Repository, cfg.Labels),
			NoCache:    cfg.NoCache,
			Stdout:     b.stdout,
			Stderr:     b.stderr,
		})
	case errors.Is(err, ErrDockerfileNotFound) && cfg.Dockerfile == "":
		err = b.runRepo2Docker(ctx, spec.Repository.Dir, ref)
	}
	if err != nil {
		return "", err
	}
	return string(ref), nil
}

// FindDockerfile returns the Dockerfile to build relative to dir. An explicit
// path must exist; otherwise the conventional locations are searched.
func FindDockerfile(dir, explicit string) (string, error) {
	candidates := dockerfileCandidates
	if explicit != "" {
		candidates = []string{explicit}
	}
	for _, candidate := range candidates {
		info, err := os.Stat(filepath.Join(dir, candidate))
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	if explicit != "" {
		return "", fmt.Errorf("%w: %s", ErrDockerfileNotFound, filepath.Join(dir, explicit))
	}
	return "", fmt.Errorf("%w in %s", ErrDockerfileNotFound, dir)
}

func (b *Builder) runRepo2Docker(ctx context.Context, dir string, ref container.ImageReference) error {
	binary, err := b.lookPath(b.repo2docker)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("build container image").
			WithResource(dir).
			WithSuggestion("Add a Dockerfile to the repository").
			WithSuggestion("Install repo2docker (pip install jupyter-repo2docker)").
			WithIssue(issue.DockerfileNotFoundId).
			Wrap(fmt.Errorf("%w and %s is not installed", ErrDockerfileNotFound, b.repo2docker)).
			BuildError()
	}

	b.logger.Debug("building with repo2docker", "binary", binary)
	cmd := b.execCommand(ctx, binary, Repo2DockerArgs(dir, ref)...)
	cmd.Stdout = b.stdout
	cmd.Stderr = b.stderr
	if err := cmd.Run(); err != nil {
		return issue.NewErrorContext().
			WithOperation("build container image with repo2docker").
			WithResource(dir).
			WithSuggestion("Check environment.yml or requirements.txt for unresolvable packages").
			WithSuggestion("Run with --verbose to see full build output").
			Wrap(err).
			BuildError()
	}
	return nil
}

// Repo2DockerArgs constructs the repo2docker arguments for building ref from dir
// without starting a container.
func Repo2DockerArgs(dir string, ref container.ImageReference) []string {
	return []string{
		"--no-run",
		"--user-id", "1000",
		"--user-name", "jovyan",
		"--image-name", string(ref),
		dir,
	}
}

// labels merges the provenance labels with the configured ones. Configured
// labels win.
func labels(repo pipeline.Repository, configured map[string]string) map[string]string {
	out := make(map[string]string, len(configured)+2)
	if repo.Owner != "" && repo.Name != "" {
		out[labelSource] = repo.Owner + "/" + repo.Name
	}
	if repo.Commit != "" {
		out[labelRevision] = repo.Commit
	}
	for k, v := range configured {
		out[k] = v
	}
	return out
}
