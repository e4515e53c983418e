// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"appgen-cli/internal/issue"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the implementation shared by CLI-based engines.
	// Docker and Podman engines embed it; only Available and Version differ.
	BaseCLIEngine struct {
		name        string
		binaryPath  string
		execCommand ExecCommandFunc
	}
)

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithBinaryPath overrides the binary found on PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
	}
}

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:  binaryPath,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for a container build command.
//
// Generated command: <binary> build [options] <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	if opts.Tag != "" {
		args = append(args, "-t", string(opts.Tag))
	}

	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	// Sorted so the generated command is stable.
	for _, k := range slices.Sorted(maps.Keys(opts.BuildArgs)) {
		args = append(args, "--build-arg", k+"="+opts.BuildArgs[k])
	}
	for _, k := range slices.Sorted(maps.Keys(opts.Labels)) {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}

	return append(args, opts.ContextDir)
}

// TagArgs constructs arguments for a tag command.
func (e *BaseCLIEngine) TagArgs(source, target ImageReference) []string {
	return []string{"tag", string(source), string(target)}
}

// PushArgs constructs arguments for a push command.
func (e *BaseCLIEngine) PushArgs(image ImageReference) []string {
	return []string{"push", string(image)}
}

// LoginArgs constructs arguments for a login command. The password is never
// part of the arguments; it is written to stdin.
func (e *BaseCLIEngine) LoginArgs(opts LoginOptions) []string {
	return []string{"login", "--username", opts.Username, "--password-stdin", opts.Registry}
}

// --- Command Execution ---

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
// This is useful when the caller needs to customize stdin/stdout/stderr.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// --- Promoted Engine Methods (shared by Docker and Podman) ---

// Build builds an image from a Dockerfile.
// It validates BuildOptions before executing to catch invalid fields early.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	cmd := e.CreateCommand(ctx, e.BuildArgs(opts)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, err)
	}
	return nil
}

// Tag adds target as a name for source.
func (e *BaseCLIEngine) Tag(ctx context.Context, source, target ImageReference) error {
	if err := source.Validate(); err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return err
	}
	return e.RunCommandStatus(ctx, e.TagArgs(source, target)...)
}

// Push uploads an image. Registry output is captured and attached to the
// error on failure so IsTransientError can classify it.
func (e *BaseCLIEngine) Push(ctx context.Context, opts PushOptions) error {
	if err := opts.Image.Validate(); err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := e.CreateCommand(ctx, e.PushArgs(opts.Image)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = &stderr
	if opts.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, opts.Stderr)
	}

	if err := cmd.Run(); err != nil {
		return pushContainerError(e.name, opts.Image, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// Login authenticates the engine against a registry.
func (e *BaseCLIEngine) Login(ctx context.Context, opts LoginOptions) error {
	if opts.Registry == "" || opts.Username == "" {
		return fmt.Errorf("registry login requires a registry and a username")
	}

	var stderr bytes.Buffer
	cmd := e.CreateCommand(ctx, e.LoginArgs(opts)...)
	cmd.Stdin = strings.NewReader(opts.Password)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return issue.NewErrorContext().
			WithOperation("log in to registry").
			WithResource(opts.Registry).
			WithSuggestion("Check that your cloud credentials are valid and not expired").
			WithSuggestion("Verify the " + e.name + " daemon is running").
			WithIssue(issue.RegistryLoginFailedId).
			Wrap(withOutput(err, stderr.String())).
			BuildError()
	}
	return nil
}

// ImageExists checks if an image exists locally.
func (e *BaseCLIEngine) ImageExists(ctx context.Context, image ImageReference) (bool, error) {
	if err := image.Validate(); err != nil {
		return false, err
	}
	err := e.RunCommandStatus(ctx, "image", "inspect", string(image))
	return err == nil, nil
}

// --- Actionable Error Helpers ---

// buildContainerError creates an actionable error for container build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image")

	switch {
	case opts.Dockerfile != "":
		ctx.WithResource(opts.Dockerfile)
	case opts.Tag != "":
		ctx.WithResource(string(opts.Tag))
	default:
		ctx.WithResource(opts.ContextDir)
	}

	ctx.WithSuggestion("Check Dockerfile syntax for errors")
	ctx.WithSuggestion("Ensure base images are available (try: " + engine + " pull <base-image>)")
	ctx.WithSuggestion("Run with --verbose to see full build output")

	return ctx.Wrap(cause).BuildError()
}

// pushContainerError creates an actionable error for push failures.
func pushContainerError(engine string, image ImageReference, output string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("push container image").
		WithResource(string(image)).
		WithSuggestion("Make sure you are logged in to the registry (try: " + engine + " login <registry>)").
		WithSuggestion("Verify the repository exists and you have push access").
		Wrap(withOutput(cause, output)).
		BuildError()
}

// withOutput attaches captured command output to err.
func withOutput(err error, output string) error {
	output = strings.TrimSpace(output)
	if output == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, output)
}
