// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"appgen-cli/internal/logging"
)

type (
	fakeSource struct {
		localizeCalls []localizeCall
		err           error
	}

	localizeCall struct {
		source, dest, revision string
	}

	fakeBuilder struct {
		specs []BuildSpec
		err   error
	}

	fakePusher struct {
		specs []PushSpec
	}

	fakeCloud struct {
		ensured  []ImageName
		logins   int
		registry string
	}

	fakeGenerator struct {
		specs  []GenerateSpec
		params []Parameter
	}

	fakeCatalog struct {
		entries   map[string]*CatalogEntry // by name
		nextID    int
		uploads   map[string][]ArtifactFile
		published []string
		calls     []string
		// failUploads makes the next failUploads uploads fail.
		failUploads int
	}
)

func (f *fakeSource) Localize(_ context.Context, source, dest, revision string) (Repository, error) {
	f.localizeCalls = append(f.localizeCalls, localizeCall{source, dest, revision})
	if f.err != nil {
		return Repository{}, f.err
	}
	dir := dest
	if dir == "" {
		dir = source
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Repository{}, err
	}
	return f.Inspect(context.Background(), dir)
}

func (f *fakeSource) Inspect(_ context.Context, dir string) (Repository, error) {
	return Repository{Dir: dir, Owner: "Unity-SDS", Name: filepath.Base(dir), Commit: "0123456789abcdef"}, nil
}

func (f *fakeBuilder) Defaults(repo Repository) ImageName {
	return ImageName{Namespace: "unity-sds", Repository: repo.Name, Tag: repo.Commit[:7]}
}

func (f *fakeBuilder) Build(_ context.Context, spec BuildSpec) (string, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return "", f.err
	}
	return spec.Image.Reference(), nil
}

func (f *fakePusher) Push(_ context.Context, spec PushSpec) (string, error) {
	f.specs = append(f.specs, spec)
	return fmt.Sprintf("%s/%s:%s", spec.Registry, spec.Repository, spec.Tag), nil
}

func (f *fakeCloud) EnsureRepository(_ context.Context, image ImageName) (string, error) {
	f.ensured = append(f.ensured, image)
	return f.registry, nil
}

func (f *fakeCloud) Login(context.Context) error {
	f.logins++
	return nil
}

func (f *fakeGenerator) Parameters(context.Context, Repository) ([]Parameter, error) {
	return f.params, nil
}

func (f *fakeGenerator) Generate(_ context.Context, spec GenerateSpec) ([]string, error) {
	f.specs = append(f.specs, spec)
	names := []string{"process.cwl", "applicationDescriptor.json"}
	if spec.Monolithic {
		names = append(names, "stage_in.cwl", "stage_out.cwl", "workflow.cwl")
	}
	var written []string
	for _, n := range names {
		p := filepath.Join(spec.OutputDir, n)
		if err := os.WriteFile(p, []byte("image: "+spec.Image+"\n"), 0o644); err != nil {
			return nil, err
		}
		written = append(written, p)
	}
	return written, nil
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{entries: map[string]*CatalogEntry{}, nextID: 100, uploads: map[string][]ArtifactFile{}}
}

func (f *fakeCatalog) Lookup(_ context.Context, name string) (*CatalogEntry, error) {
	f.calls = append(f.calls, "lookup")
	return f.entries[name], nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*CatalogEntry, error) {
	f.calls = append(f.calls, "get")
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) Register(_ context.Context, name string) (*CatalogEntry, error) {
	f.calls = append(f.calls, "register")
	f.nextID++
	e := &CatalogEntry{ID: strconv.Itoa(f.nextID), Name: name}
	f.entries[name] = e
	return e, nil
}

func (f *fakeCatalog) Upload(_ context.Context, id string, files []ArtifactFile) error {
	f.calls = append(f.calls, "upload")
	if f.failUploads > 0 {
		f.failUploads--
		return errors.New("upload interrupted")
	}
	f.uploads[id] = files
	return nil
}

func (f *fakeCatalog) Publish(_ context.Context, id string) error {
	f.calls = append(f.calls, "publish")
	f.published = append(f.published, id)
	for _, e := range f.entries {
		if e.ID == id {
			e.Published = true
		}
	}
	return nil
}

type harness struct {
	orch      *Orchestrator
	root      string
	appDir    string
	source    *fakeSource
	builder   *fakeBuilder
	pusher    *fakePusher
	cloud     *fakeCloud
	generator *fakeGenerator
	catalog   *fakeCatalog
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	root := t.TempDir()
	h := &harness{
		root:      root,
		appDir:    filepath.Join(root, "my-app"),
		source:    &fakeSource{},
		builder:   &fakeBuilder{},
		pusher:    &fakePusher{},
		cloud:     &fakeCloud{registry: "123.dkr.ecr.us-west-2.amazonaws.com/unity-sds"},
		generator: &fakeGenerator{},
		catalog:   newFakeCatalog(),
	}
	h.orch = &Orchestrator{
		StateDir:  filepath.Join(root, ".unity_app_gen"),
		Source:    h.source,
		Builder:   h.builder,
		Pusher:    h.pusher,
		Cloud:     h.cloud,
		Generator: h.generator,
		Catalog:   h.catalog,
		Logger:    logging.Discard(),
	}
	return h
}

// initialized returns a harness whose state directory has been initialized.
func initialized(t *testing.T) *harness {
	t.Helper()

	h := newHarness(t)
	if _, err := h.orch.Initialize(context.Background(), InitRequest{Source: "https://github.com/Unity-SDS/my-app.git", Destination: h.appDir}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return h
}
