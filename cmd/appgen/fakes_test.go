// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"appgen-cli/internal/config"
	"appgen-cli/internal/cwl"
	"appgen-cli/internal/pipeline"
	"appgen-cli/internal/source"
	"appgen-cli/internal/testutil"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type (
	staticConfig struct {
		cfg *config.Config
		err error
	}

	fakeCollaborators struct {
		mu      sync.Mutex
		builds  []pipeline.BuildSpec
		pushes  []pipeline.PushSpec
		entries map[string]*pipeline.CatalogEntry
		uploads map[string][]pipeline.ArtifactFile
		apiURL  string
		token   string
	}

	fakeBuilder struct{ c *fakeCollaborators }
	fakePusher  struct{ c *fakeCollaborators }
	fakeCloud   struct{}
	fakeCatalog struct{ c *fakeCollaborators }

	result struct {
		stdout string
		stderr string
		err    error
	}
)

func (p staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, string, error) {
	if p.err != nil {
		return nil, "", p.err
	}
	if p.cfg != nil {
		return p.cfg, "", nil
	}
	return config.DefaultConfig(), "", nil
}

func newFakeCollaborators() *fakeCollaborators {
	return &fakeCollaborators{
		entries: map[string]*pipeline.CatalogEntry{},
		uploads: map[string][]pipeline.ArtifactFile{},
	}
}

func (c *fakeCollaborators) Source(s *Session) pipeline.SourceLocalizer {
	return source.NewLocalizer(s.Logger)
}

func (c *fakeCollaborators) Builder(context.Context, *Session) (pipeline.ImageBuilder, error) {
	return &fakeBuilder{c: c}, nil
}

func (c *fakeCollaborators) Pusher(context.Context, *Session) (pipeline.ImagePusher, error) {
	return &fakePusher{c: c}, nil
}

func (c *fakeCollaborators) Cloud(context.Context, *Session) (pipeline.CloudRegistry, error) {
	return fakeCloud{}, nil
}

func (c *fakeCollaborators) Generator(s *Session) pipeline.ArtifactGenerator {
	return cwl.NewGenerator(cwl.WithLogger(s.Logger))
}

func (c *fakeCollaborators) Catalog(_ *Session, apiURL, token string) (pipeline.Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiURL, c.token = apiURL, token
	return &fakeCatalog{c: c}, nil
}

func (b *fakeBuilder) Defaults(repo pipeline.Repository) pipeline.ImageName {
	return pipeline.ImageName{Namespace: "example", Repository: repo.Name, Tag: "latest"}
}

func (b *fakeBuilder) Build(_ context.Context, spec pipeline.BuildSpec) (string, error) {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	b.c.builds = append(b.c.builds, spec)
	return spec.Image.Reference(), nil
}

func (p *fakePusher) Push(_ context.Context, spec pipeline.PushSpec) (string, error) {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	p.c.pushes = append(p.c.pushes, spec)
	return spec.Registry + "/" + spec.Repository + ":" + spec.Tag, nil
}

func (fakeCloud) EnsureRepository(_ context.Context, image pipeline.ImageName) (string, error) {
	return "123456789012.dkr.ecr.us-west-2.amazonaws.com/" + image.Namespace, nil
}

func (fakeCloud) Login(context.Context) error { return nil }

func (f *fakeCatalog) Lookup(_ context.Context, name string) (*pipeline.CatalogEntry, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	for _, e := range f.c.entries {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*pipeline.CatalogEntry, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return f.c.entries[id], nil
}

func (f *fakeCatalog) Register(_ context.Context, name string) (*pipeline.CatalogEntry, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	id := strconv.Itoa(1000 + len(f.c.entries))
	e := &pipeline.CatalogEntry{ID: id, Name: name}
	f.c.entries[id] = e
	return e, nil
}

func (f *fakeCatalog) Upload(_ context.Context, id string, files []pipeline.ArtifactFile) error {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	if _, ok := f.c.entries[id]; !ok {
		return fmt.Errorf("entry %s not found", id)
	}
	f.c.uploads[id] = files
	return nil
}

func (f *fakeCatalog) Publish(_ context.Context, id string) error {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	e, ok := f.c.entries[id]
	if !ok {
		return fmt.Errorf("entry %s not found", id)
	}
	e.Published = true
	return nil
}

// execute runs the command tree with args and captures its output.
func execute(t *testing.T, deps Dependencies, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	deps.Stdout = &stdout
	deps.Stderr = &stderr
	if deps.Config == nil {
		deps.Config = staticConfig{}
	}

	app, err := NewApp(deps)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	root := newRootCommand(app)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return result{
		stdout: ansiEscape.ReplaceAllString(stdout.String(), ""),
		stderr: ansiEscape.ReplaceAllString(stderr.String(), ""),
		err:    err,
	}
}

// exitCode returns the code carried by err, 0 for nil.
func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v is not an *ExitError", err)
	}
	return exitErr.Code
}

// newApplication creates an application repository and returns it with a
// state directory path next to it.
func newApplication(t *testing.T) (repoDir, stateDir string) {
	t.Helper()
	root := t.TempDir()
	repoDir = filepath.Join(root, "ndvi-app")
	testutil.MustMkdirAll(t, repoDir, 0o755)
	testutil.NewAppRepo(t, repoDir, "https://github.com/example-org/ndvi-app.git")
	return repoDir, filepath.Join(root, "state")
}
