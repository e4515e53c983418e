// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"appgen-cli/internal/state"

	"gopkg.in/yaml.v3"
)

func ptrTo(s string) *string { return &s }

func wantPrecondition(t *testing.T, err error, missing Requirement) {
	t.Helper()

	var pre *PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("error = %v, want *PreconditionError", err)
	}
	if !errors.Is(err, ErrPrecondition) {
		t.Error("PreconditionError should unwrap to ErrPrecondition")
	}
	if pre.Missing != missing {
		t.Errorf("Missing = %q, want %q (%v)", pre.Missing, missing, err)
	}
}

func TestInitialize_CreatesState(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res, err := h.orch.Initialize(context.Background(), InitRequest{
		Source:      "https://github.com/Unity-SDS/my-app.git",
		Destination: h.appDir,
		Revision:    "v1.0",
	})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !res.Created {
		t.Error("Created = false on first init")
	}
	if res.AppBasePath != h.appDir {
		t.Errorf("AppBasePath = %q, want %q", res.AppBasePath, h.appDir)
	}
	if !state.Exists(h.orch.StateDir) {
		t.Error("state record not written")
	}
	if got := h.source.localizeCalls[0].revision; got != "v1.0" {
		t.Errorf("revision passed to localizer = %q, want v1.0", got)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	t.Parallel()

	h := initialized(t)
	before, err := os.ReadFile(state.RecordPath(h.orch.StateDir))
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.orch.Initialize(context.Background(), InitRequest{
		Source:      "https://example.com/other.git",
		Destination: filepath.Join(h.root, "elsewhere"),
		Revision:    "main",
	})
	if err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if res.Created {
		t.Error("Created = true on repeated init")
	}

	after, err := os.ReadFile(state.RecordPath(h.orch.StateDir))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Errorf("state changed on repeated init:\n%s\n---\n%s", before, after)
	}

	last := h.source.localizeCalls[len(h.source.localizeCalls)-1]
	if last.source != "https://github.com/Unity-SDS/my-app.git" || last.dest != h.appDir {
		t.Errorf("re-localized with %+v, want stored source and path", last)
	}
	if last.revision != "main" {
		t.Errorf("revision = %q, want main", last.revision)
	}
}

func TestInitialize_RequiresSource(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.orch.Initialize(context.Background(), InitRequest{})
	wantPrecondition(t, err, RequireSource)
}

func TestInitialize_LocalizeFailureLeavesNoState(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.err = errors.New("clone failed")
	_, err := h.orch.Initialize(context.Background(), InitRequest{Source: "https://example.com/x.git", Destination: h.appDir})
	if err == nil || !strings.Contains(err.Error(), "clone failed") {
		t.Fatalf("Initialize() error = %v, want clone failure", err)
	}
	if state.Exists(h.orch.StateDir) {
		t.Error("state written after failed localization")
	}
}

func TestStages_RequireInitializedState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	checks := map[string]func() error{
		"build":      func() error { _, err := h.orch.BuildImage(ctx, BuildRequest{}); return err },
		"push":       func() error { _, err := h.orch.PushImage(ctx, "registry.local"); return err },
		"push cloud": func() error { _, err := h.orch.PushCloudRegistry(ctx); return err },
		"parameters": func() error { _, err := h.orch.NotebookParameters(ctx); return err },
		"generate":   func() error { _, err := h.orch.GenerateArtifacts(ctx, GenerateRequest{}); return err },
		"register":   func() error { _, err := h.orch.Register(ctx); return err },
	}
	for name, run := range checks {
		t.Run(name, func(t *testing.T) {
			err := run()
			wantPrecondition(t, err, RequireState)
			if !strings.Contains(err.Error(), "please run init sub-command first") {
				t.Errorf("message %q does not point at init", err.Error())
			}
		})
	}
}

func TestBuildImage_Precedence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := initialized(t)

	res, err := h.orch.BuildImage(ctx, BuildRequest{})
	if err != nil {
		t.Fatalf("BuildImage() error = %v", err)
	}
	if res.Reference != "unity-sds/my-app:0123456" {
		t.Errorf("default reference = %q", res.Reference)
	}

	// Explicit overrides win, and an explicit empty namespace is honored.
	res, err = h.orch.BuildImage(ctx, BuildRequest{Namespace: ptrTo(""), Tag: ptrTo("v2")})
	if err != nil {
		t.Fatalf("BuildImage() error = %v", err)
	}
	if res.Reference != "my-app:v2" {
		t.Errorf("override reference = %q, want my-app:v2", res.Reference)
	}

	// Stored values win over defaults on the next build.
	res, err = h.orch.BuildImage(ctx, BuildRequest{})
	if err != nil {
		t.Fatalf("BuildImage() error = %v", err)
	}
	if res.Reference != "my-app:v2" {
		t.Errorf("stored reference = %q, want my-app:v2", res.Reference)
	}

	store, err := state.Open(h.orch.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if ns := store.DockerImageNamespace(); ns == nil || *ns != "" {
		t.Errorf("stored namespace = %v, want empty string", ns)
	}
	if ref := store.DockerImageReference(); ref == nil || *ref != "my-app:v2" {
		t.Errorf("stored reference = %v", ref)
	}
}

func TestBuildImage_FailureKeepsState(t *testing.T) {
	t.Parallel()

	h := initialized(t)
	h.builder.err = errors.New("engine exploded")

	if _, err := h.orch.BuildImage(context.Background(), BuildRequest{}); err == nil {
		t.Fatal("BuildImage() should fail")
	}
	store, err := state.Open(h.orch.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if store.DockerImageReference() != nil {
		t.Error("reference recorded for a failed build")
	}
}

func TestPushImage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := initialized(t)

	_, err := h.orch.PushImage(ctx, "registry.local:5000")
	wantPrecondition(t, err, RequireBuild)

	if _, err := h.orch.BuildImage(ctx, BuildRequest{}); err != nil {
		t.Fatal(err)
	}

	_, err = h.orch.PushImage(ctx, " ")
	wantPrecondition(t, err, RequireRegistry)

	res, err := h.orch.PushImage(ctx, "registry.local:5000/")
	if err != nil {
		t.Fatalf("PushImage() error = %v", err)
	}
	if res.URL != "registry.local:5000/my-app:0123456" {
		t.Errorf("URL = %q", res.URL)
	}
	if got := h.pusher.specs[0].LocalReference; got != "unity-sds/my-app:0123456" {
		t.Errorf("LocalReference = %q", got)
	}

	store, err := state.Open(h.orch.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if u := store.DockerURL(); u == nil || *u != res.URL {
		t.Errorf("stored docker_url = %v, want %s", u, res.URL)
	}
}

func TestPushCloudRegistry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := initialized(t)

	_, err := h.orch.PushCloudRegistry(ctx)
	wantPrecondition(t, err, RequireBuild)
	if len(h.cloud.ensured) != 0 {
		t.Error("cloud repository provisioned before a build")
	}

	if _, err := h.orch.BuildImage(ctx, BuildRequest{}); err != nil {
		t.Fatal(err)
	}
	res, err := h.orch.PushCloudRegistry(ctx)
	if err != nil {
		t.Fatalf("PushCloudRegistry() error = %v", err)
	}
	if h.cloud.logins != 1 {
		t.Errorf("logins = %d, want 1", h.cloud.logins)
	}
	if got := h.cloud.ensured[0].Path(); got != "unity-sds/my-app" {
		t.Errorf("ensured repository = %q", got)
	}
	if res.URL != "123.dkr.ecr.us-west-2.amazonaws.com/unity-sds/my-app:0123456" {
		t.Errorf("URL = %q", res.URL)
	}
}

func TestGenerateArtifacts_ImagePrecedence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := initialized(t)

	_, err := h.orch.GenerateArtifacts(ctx, GenerateRequest{})
	wantPrecondition(t, err, RequireImage)

	if _, err := h.orch.BuildImage(ctx, BuildRequest{}); err != nil {
		t.Fatal(err)
	}
	res, err := h.orch.GenerateArtifacts(ctx, GenerateRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Image != "unity-sds/my-app:0123456" {
		t.Errorf("image after build = %q, want local reference", res.Image)
	}

	if _, err := h.orch.PushImage(ctx, "registry.local"); err != nil {
		t.Fatal(err)
	}
	res, err = h.orch.GenerateArtifacts(ctx, GenerateRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Image != "registry.local/my-app:0123456" {
		t.Errorf("image after push = %q, want pushed reference", res.Image)
	}

	res, err = h.orch.GenerateArtifacts(ctx, GenerateRequest{ImageURL: "ghcr.io/x/y:1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Image != "ghcr.io/x/y:1" {
		t.Errorf("image with override = %q", res.Image)
	}
}

func TestGenerateArtifacts_OutputOverrideIsStored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := initialized(t)
	out := filepath.Join(h.root, "nested", "artifacts")

	res, err := h.orch.GenerateArtifacts(ctx, GenerateRequest{OutputDir: out, ImageURL: "img:1"})
	if err != nil {
		t.Fatalf("GenerateArtifacts() error = %v", err)
	}
	if res.OutputDir != out {
		t.Errorf("OutputDir = %q, want %q", res.OutputDir, out)
	}

	store, err := state.Open(h.orch.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if p := store.CWLOutputPath(); p == nil || *p != out {
		t.Errorf("stored cwl_output_path = %v, want %s", p, out)
	}
}

func readRouting(t *testing.T, path string) routingFile {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc routingFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("routing file is not YAML: %v", err)
	}
	return doc
}

func TestEndToEnd_LocalDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	if err := os.Mkdir(h.appDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := h.orch.Initialize(ctx, InitRequest{Source: h.appDir}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.orch.BuildImage(ctx, BuildRequest{}); err != nil {
		t.Fatal(err)
	}
	res, err := h.orch.GenerateArtifacts(ctx, GenerateRequest{})
	if err != nil {
		t.Fatal(err)
	}

	wantDir := filepath.Join(h.orch.StateDir, state.DefaultCWLDirName)
	if res.OutputDir != wantDir {
		t.Errorf("OutputDir = %q, want %q", res.OutputDir, wantDir)
	}
	for _, name := range []string{"process.cwl", "applicationDescriptor.json", RoutingFileName} {
		if _, err := os.Stat(filepath.Join(wantDir, name)); err != nil {
			t.Errorf("%s not generated: %v", name, err)
		}
	}

	doc := readRouting(t, res.RoutingFile)
	if doc.Version != "1.2" || len(doc.Workflows) != 1 {
		t.Fatalf("unexpected routing file %+v", doc)
	}
	if got := doc.Workflows[0].PrimaryDescriptorPath; got != "/process.cwl" {
		t.Errorf("primaryDescriptorPath = %q, want /process.cwl", got)
	}
}

func TestGenerateArtifacts_Monolithic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := initialized(t)
	if _, err := h.orch.BuildImage(ctx, BuildRequest{}); err != nil {
		t.Fatal(err)
	}

	res, err := h.orch.GenerateArtifacts(ctx, GenerateRequest{Monolithic: true})
	if err != nil {
		t.Fatal(err)
	}
	if !h.generator.specs[0].Monolithic {
		t.Error("generator not asked for monolithic output")
	}
	for _, name := range []string{"stage_in.cwl", "stage_out.cwl", "workflow.cwl"} {
		if _, err := os.Stat(filepath.Join(res.OutputDir, name)); err != nil {
			t.Errorf("%s not generated: %v", name, err)
		}
	}
	if got := readRouting(t, res.RoutingFile).Workflows[0].PrimaryDescriptorPath; got != "/workflow.cwl" {
		t.Errorf("primaryDescriptorPath = %q, want /workflow.cwl", got)
	}
}

func TestRegister_RequiresArtifacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := initialized(t)

	_, err := h.orch.Register(ctx)
	wantPrecondition(t, err, RequireOutputDir)

	out := filepath.Join(h.orch.StateDir, state.DefaultCWLDirName)
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	_, err = h.orch.Register(ctx)
	wantPrecondition(t, err, RequireCWL)

	if err := os.WriteFile(filepath.Join(out, "process.cwl"), []byte("cwlVersion: v1.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = h.orch.Register(ctx)
	wantPrecondition(t, err, RequireJSON)
	if !strings.Contains(err.Error(), "JSON") {
		t.Errorf("message %q does not name the missing kind", err.Error())
	}
	if len(h.catalog.calls) != 0 {
		t.Errorf("catalog contacted before artifacts were complete: %v", h.catalog.calls)
	}
}

func generated(t *testing.T) *harness {
	t.Helper()

	ctx := context.Background()
	h := initialized(t)
	if _, err := h.orch.BuildImage(ctx, BuildRequest{}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.orch.GenerateArtifacts(ctx, GenerateRequest{}); err != nil {
		t.Fatal(err)
	}
	return h
}

func TestRegister_NewEntry(t *testing.T) {
	t.Parallel()

	h := generated(t)
	res, err := h.orch.Register(context.Background())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !res.Created || res.Name != "my-app" {
		t.Errorf("result = %+v", res)
	}
	if want := []string{"lookup", "register", "upload", "publish"}; !slices.Equal(h.catalog.calls, want) {
		t.Errorf("catalog calls = %v, want %v", h.catalog.calls, want)
	}
	want := []string{RoutingFileName, "applicationDescriptor.json", "process.cwl"}
	if !slices.Equal(res.Files, want) {
		t.Errorf("uploaded files = %v, want %v", res.Files, want)
	}

	store, err := state.Open(h.orch.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if id := store.AppRegistryID(); id == nil || *id != res.ID {
		t.Errorf("stored app_registry_id = %v, want %s", id, res.ID)
	}
}

func TestRegister_ExistingEntryGetsNewVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := generated(t)
	first, err := h.orch.Register(ctx)
	if err != nil {
		t.Fatal(err)
	}
	h.catalog.calls = nil

	second, err := h.orch.Register(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created || second.ID != first.ID {
		t.Errorf("second registration = %+v, want update of %s", second, first.ID)
	}
	if want := []string{"lookup", "upload"}; !slices.Equal(h.catalog.calls, want) {
		t.Errorf("catalog calls = %v, want %v", h.catalog.calls, want)
	}
}

func TestRegister_ResumedAfterFailedUploadPublishes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := generated(t)
	h.catalog.failUploads = 1

	if _, err := h.orch.Register(ctx); err == nil {
		t.Fatal("Register() with a failing upload should fail")
	}
	if len(h.catalog.published) != 0 {
		t.Fatalf("published = %v before any upload succeeded", h.catalog.published)
	}
	h.catalog.calls = nil

	res, err := h.orch.Register(ctx)
	if err != nil {
		t.Fatalf("resumed Register() error = %v", err)
	}
	if res.Created {
		t.Errorf("result = %+v, want the entry of the failed run", res)
	}
	if want := []string{"lookup", "upload", "publish"}; !slices.Equal(h.catalog.calls, want) {
		t.Errorf("catalog calls = %v, want %v", h.catalog.calls, want)
	}
	if !slices.Equal(h.catalog.published, []string{res.ID}) {
		t.Errorf("published = %v, want [%s]", h.catalog.published, res.ID)
	}
}

func TestRegister_StoredIDUsedWhenLookupMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := generated(t)
	h.catalog.entries["renamed"] = &CatalogEntry{ID: "77", Name: "renamed", Published: true}

	store, err := state.Open(h.orch.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetAppRegistryID("77"); err != nil {
		t.Fatal(err)
	}

	res, err := h.orch.Register(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.ID != "77" {
		t.Errorf("result = %+v, want update of stored entry 77", res)
	}
	if want := []string{"lookup", "get", "upload"}; !slices.Equal(h.catalog.calls, want) {
		t.Errorf("catalog calls = %v, want %v", h.catalog.calls, want)
	}
}

func TestRegister_StaleStoredIDReplaced(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := generated(t)

	store, err := state.Open(h.orch.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetAppRegistryID("gone"); err != nil {
		t.Fatal(err)
	}

	res, err := h.orch.Register(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created || res.ID == "gone" {
		t.Errorf("result = %+v, want new entry", res)
	}

	store, err = state.Open(h.orch.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if id := store.AppRegistryID(); id == nil || *id != res.ID {
		t.Errorf("stored app_registry_id = %v, want %s", id, res.ID)
	}
}

func TestNotebookParameters(t *testing.T) {
	t.Parallel()

	h := initialized(t)
	h.generator.params = []Parameter{{Name: "input_stac", Type: "string"}, {Name: "output_dir", Type: "Directory", Output: true}}

	params, err := h.orch.NotebookParameters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 2 || params[1].Name != "output_dir" {
		t.Errorf("params = %+v", params)
	}
}

func TestApplicationName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/work/my-app":      "my-app",
		"/work/my-app.git":  "my-app",
		"/work/my-app/":     "my-app",
		"relative/notebook": "notebook",
	}
	for in, want := range tests {
		if got := ApplicationName(in); got != want {
			t.Errorf("ApplicationName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestImageName_Reference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name ImageName
		want string
	}{
		{ImageName{Namespace: "ns", Repository: "repo", Tag: "t"}, "ns/repo:t"},
		{ImageName{Repository: "repo", Tag: "t"}, "repo:t"},
		{ImageName{Repository: "repo"}, "repo"},
	}
	for _, tt := range tests {
		if got := tt.name.Reference(); got != tt.want {
			t.Errorf("Reference() = %q, want %q", got, tt.want)
		}
	}
}
