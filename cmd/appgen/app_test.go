// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"appgen-cli/internal/config"
	"appgen-cli/internal/issue"
	"appgen-cli/internal/pipeline"
	"appgen-cli/internal/state"
	"appgen-cli/internal/testutil"
)

func TestPipeline_EndToEnd(t *testing.T) {
	t.Parallel()

	repoDir, stateDir := newApplication(t)
	fakes := newFakeCollaborators()
	deps := Dependencies{Collaborators: fakes}
	run := func(args ...string) string {
		t.Helper()
		res := execute(t, deps, append([]string{"--state_directory", stateDir}, args...)...)
		if res.err != nil {
			t.Fatalf("appgen %s: %v\n%s", strings.Join(args, " "), res.err, res.stderr)
		}
		return res.stdout
	}

	if out := run("init", repoDir); !strings.Contains(out, "Initialized application state") {
		t.Errorf("init output = %q", out)
	}
	if out := run("build_docker"); !strings.Contains(out, "example/ndvi-app:latest") {
		t.Errorf("build_docker output = %q", out)
	}
	if out := run("push_docker", "registry.example.com/"); !strings.Contains(out, "registry.example.com/ndvi-app:latest") {
		t.Errorf("push_docker output = %q", out)
	}

	out := run("build_cwl")
	if !strings.Contains(out, "registry.example.com/ndvi-app:latest") {
		t.Errorf("build_cwl should use the pushed image: %q", out)
	}
	cwlDir := filepath.Join(stateDir, state.DefaultCWLDirName)
	for _, name := range []string{"process.cwl", "applicationDescriptor.json", pipeline.RoutingFileName} {
		if _, err := os.Stat(filepath.Join(cwlDir, name)); err != nil {
			t.Errorf("%s not generated: %v", name, err)
		}
	}

	out = run("push_app_registry", "--token", "secret", "--api-url", "http://catalog.test/api")
	if !strings.Contains(out, "Registered ndvi-app") {
		t.Errorf("push_app_registry output = %q", out)
	}
	if fakes.token != "secret" || fakes.apiURL != "http://catalog.test/api" {
		t.Errorf("catalog built with %q, %q", fakes.apiURL, fakes.token)
	}

	if out := run("state", "get", "app_registry_id"); strings.TrimSpace(out) != "1000" {
		t.Errorf("app_registry_id = %q, want 1000", out)
	}
	if out := run("state", "get", "docker_url"); strings.TrimSpace(out) != "registry.example.com/ndvi-app:latest" {
		t.Errorf("docker_url = %q", out)
	}

	// A second registration updates the existing entry.
	if out := run("push_app_registry", "--token", "secret"); !strings.Contains(out, "Updated ndvi-app") {
		t.Errorf("second push_app_registry output = %q", out)
	}
	if len(fakes.entries) != 1 {
		t.Errorf("catalog holds %d entries, want 1", len(fakes.entries))
	}
}

func TestBuildDocker_FlagPrecedence(t *testing.T) {
	t.Parallel()

	repoDir, stateDir := newApplication(t)
	fakes := newFakeCollaborators()
	deps := Dependencies{Collaborators: fakes}

	if res := execute(t, deps, "--state_directory", stateDir, "init", repoDir); res.err != nil {
		t.Fatalf("init: %v\n%s", res.err, res.stderr)
	}
	res := execute(t, deps, "--state_directory", stateDir, "build_docker", "-n", "", "-t", "v1", "--config", "build.toml")
	if res.err != nil {
		t.Fatalf("build_docker: %v\n%s", res.err, res.stderr)
	}
	res = execute(t, deps, "--state_directory", stateDir, "build_docker", "-r", "other")
	if res.err != nil {
		t.Fatalf("build_docker: %v\n%s", res.err, res.stderr)
	}

	if len(fakes.builds) != 2 {
		t.Fatalf("builds = %d, want 2", len(fakes.builds))
	}
	first := fakes.builds[0]
	want := pipeline.ImageName{Namespace: "", Repository: "ndvi-app", Tag: "v1"}
	if first.Image != want || first.ConfigFile != "build.toml" {
		t.Errorf("first build = %+v, want image %+v", first, want)
	}
	// Parts not given again come from the previous build.
	second := fakes.builds[1].Image
	if second != (pipeline.ImageName{Namespace: "", Repository: "other", Tag: "v1"}) {
		t.Errorf("second build image = %+v", second)
	}
}

func TestPushECR(t *testing.T) {
	t.Parallel()

	repoDir, stateDir := newApplication(t)
	fakes := newFakeCollaborators()
	deps := Dependencies{Collaborators: fakes}
	for _, args := range [][]string{{"init", repoDir}, {"build_docker"}, {"push_ecr"}} {
		res := execute(t, deps, append([]string{"--state_directory", stateDir}, args...)...)
		if res.err != nil {
			t.Fatalf("%v: %v\n%s", args, res.err, res.stderr)
		}
	}

	want := "123456789012.dkr.ecr.us-west-2.amazonaws.com/example/ndvi-app:latest"
	res := execute(t, deps, "--state_directory", stateDir, "state", "get", "docker_url")
	if strings.TrimSpace(res.stdout) != want {
		t.Errorf("docker_url = %q, want %q", res.stdout, want)
	}
}

func TestStages_OutOfOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		init     bool
		args     []string
		wantCode int
		wantMsg  string
	}{
		{"build before init", false, []string{"build_docker"}, ExitUsage, "please run init"},
		{"parameters before init", false, []string{"parameters"}, ExitUsage, "please run init"},
		{"state before init", false, []string{"state", "show"}, ExitUsage, "please run init"},
		{"push before build", true, []string{"push_docker", "registry.example.com"}, ExitUsage, "run build_docker first"},
		{"ecr before build", true, []string{"push_ecr"}, ExitUsage, "run build_docker first"},
		{"cwl before build", true, []string{"build_cwl"}, ExitUsage, "build_docker"},
		{"register before cwl", true, []string{"push_app_registry", "--token", "x"}, ExitUsage, "run build_cwl first"},
		{"unknown state value", true, []string{"state", "get", "docker_image"}, ExitUsage, "not a valid state value name"},
		{"immutable state value", true, []string{"state", "set", "app_base_path", "/tmp"}, ExitUsage, "immutable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repoDir, stateDir := newApplication(t)
			deps := Dependencies{Collaborators: newFakeCollaborators()}
			if tt.init {
				if res := execute(t, deps, "--state_directory", stateDir, "init", repoDir); res.err != nil {
					t.Fatalf("init: %v\n%s", res.err, res.stderr)
				}
			}

			res := execute(t, deps, append([]string{"--state_directory", stateDir}, tt.args...)...)
			if code := exitCode(t, res.err); code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(res.stderr, tt.wantMsg) {
				t.Errorf("stderr = %q, want it to mention %q", res.stderr, tt.wantMsg)
			}
		})
	}
}

func TestVerboseRendersGuide(t *testing.T) {
	t.Parallel()

	stateDir := filepath.Join(t.TempDir(), "state")
	deps := Dependencies{Collaborators: newFakeCollaborators()}

	quiet := execute(t, deps, "--state_directory", stateDir, "build_cwl")
	verbose := execute(t, deps, "--state_directory", stateDir, "-v", "build_cwl")
	if exitCode(t, quiet.err) != ExitUsage || exitCode(t, verbose.err) != ExitUsage {
		t.Fatalf("errors = %v, %v", quiet.err, verbose.err)
	}
	if strings.Contains(quiet.stderr, "Things") {
		t.Errorf("guide rendered without --verbose: %q", quiet.stderr)
	}
	if !strings.Contains(verbose.stderr, "Things") {
		t.Errorf("guide missing with --verbose: %q", verbose.stderr)
	}
}

func TestRegister_TokenFromEnvironment(t *testing.T) {
	repoDir, stateDir := newApplication(t)
	fakes := newFakeCollaborators()
	deps := Dependencies{Collaborators: fakes}
	for _, args := range [][]string{{"init", repoDir}, {"build_docker"}, {"build_cwl"}} {
		res := execute(t, deps, append([]string{"--state_directory", stateDir}, args...)...)
		if res.err != nil {
			t.Fatalf("%v: %v\n%s", args, res.err, res.stderr)
		}
	}

	testutil.MustUnsetenv(t, CatalogTokenEnv)
	res := execute(t, deps, "--state_directory", stateDir, "push_app_registry")
	if code := exitCode(t, res.err); code != ExitUsage {
		t.Errorf("exit code without token = %d, want %d", code, ExitUsage)
	}
	var ae *issue.ActionableError
	if !errors.As(res.err, &ae) || ae.Issue != issue.CatalogTokenMissingId {
		t.Errorf("error = %v, want the catalog token guide", res.err)
	}
	if fakes.token != "" {
		t.Error("catalog client built without a token")
	}

	testutil.MustSetenv(t, CatalogTokenEnv, "from-env")
	res = execute(t, deps, "--state_directory", stateDir, "push_app_registry")
	if res.err != nil {
		t.Fatalf("push_app_registry: %v\n%s", res.err, res.stderr)
	}
	if fakes.token != "from-env" || fakes.apiURL != config.DefaultCatalogURL {
		t.Errorf("catalog built with %q, %q", fakes.apiURL, fakes.token)
	}
}

func TestParameters(t *testing.T) {
	t.Parallel()

	repoDir, stateDir := newApplication(t)
	deps := Dependencies{Collaborators: newFakeCollaborators()}
	if res := execute(t, deps, "--state_directory", stateDir, "init", repoDir); res.err != nil {
		t.Fatalf("init: %v\n%s", res.err, res.stderr)
	}

	res := execute(t, deps, "--state_directory", stateDir, "parameters", "--markdown")
	if res.err != nil {
		t.Fatalf("parameters: %v\n%s", res.err, res.stderr)
	}
	for _, want := range []string{
		"| input_stac_collection_file | input | File |",
		"| threshold | input | double | 0.5 |",
		"| output_collection_dir | output | Directory |",
		"results directory",
	} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("parameters output missing %q:\n%s", want, res.stdout)
		}
	}

	rendered := execute(t, deps, "--state_directory", stateDir, "parameters")
	if rendered.err != nil || !strings.Contains(rendered.stdout, "threshold") {
		t.Errorf("rendered parameters = %q, %v", rendered.stdout, rendered.err)
	}
}

func TestParametersMarkdown(t *testing.T) {
	t.Parallel()

	got := parametersMarkdown([]pipeline.Parameter{
		{Name: "expr", Type: "string", Default: `"a|b"`, Description: "pipe\nsplit"},
	})
	if !strings.Contains(got, `| expr | input | string | "a\|b" | pipe split |`) {
		t.Errorf("parametersMarkdown() = %q", got)
	}
	if got := parametersMarkdown(nil); !strings.Contains(got, "declares no parameters") {
		t.Errorf("parametersMarkdown(nil) = %q", got)
	}
}

func TestStateCommands(t *testing.T) {
	t.Parallel()

	repoDir, stateDir := newApplication(t)
	deps := Dependencies{Collaborators: newFakeCollaborators()}
	run := func(args ...string) result {
		t.Helper()
		return execute(t, deps, append([]string{"--state_directory", stateDir}, args...)...)
	}
	if res := run("init", repoDir); res.err != nil {
		t.Fatalf("init: %v\n%s", res.err, res.stderr)
	}

	if res := run("state", "get", "docker_url"); strings.TrimSpace(res.stdout) != "null" {
		t.Errorf("unset value = %q, want null", res.stdout)
	}
	if res := run("state", "set", "docker_url", "ghcr.io/example/app:v1"); res.err != nil {
		t.Fatalf("state set: %v\n%s", res.err, res.stderr)
	}

	res := run("state", "show", "--json")
	if res.err != nil {
		t.Fatalf("state show: %v", res.err)
	}
	var record state.Record
	if err := json.Unmarshal([]byte(res.stdout), &record); err != nil {
		t.Fatalf("state show --json is not a record: %v\n%s", err, res.stdout)
	}
	if record.DockerURL == nil || *record.DockerURL != "ghcr.io/example/app:v1" {
		t.Errorf("docker_url = %v", record.DockerURL)
	}
	if record.AppBasePath != repoDir {
		t.Errorf("app_base_path = %q, want %q", record.AppBasePath, repoDir)
	}

	if res := run("state", "set", "docker_url", "--unset"); res.err != nil {
		t.Fatalf("state set --unset: %v", res.err)
	}
	res = run("state", "show")
	if !strings.Contains(res.stdout, "docker_url: (unset)") || !strings.Contains(res.stdout, state.RecordFileName) {
		t.Errorf("state show = %q", res.stdout)
	}

	if res := run("state", "set", "docker_url"); res.err == nil {
		t.Error("state set without a value or --unset should fail")
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.ContainerEngine = config.ContainerEnginePodman
	deps := Dependencies{Config: staticConfig{cfg: cfg}}

	res := execute(t, deps, "config", "show")
	if res.err != nil || !strings.Contains(res.stdout, "container_engine: podman") {
		t.Errorf("config show = %q, %v", res.stdout, res.err)
	}
	res = execute(t, deps, "config", "dump")
	if res.err != nil || !strings.Contains(res.stdout, `container_engine: "podman"`) {
		t.Errorf("config dump = %q, %v", res.stdout, res.err)
	}
	res = execute(t, deps, "--appgen-config", "/etc/appgen.cue", "config", "path")
	if res.err != nil || !strings.Contains(res.stdout, "/etc/appgen.cue") {
		t.Errorf("config path = %q, %v", res.stdout, res.err)
	}
}

func TestConfigShow_LoadFailureRendersGuide(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "config.cue")
	testutil.MustWriteFile(t, file, `container_engine: "rkt"`)
	deps := Dependencies{Config: config.NewProvider()}

	res := execute(t, deps, "--appgen-config", file, "config", "show")
	if code := exitCode(t, res.err); code != ExitFailure {
		t.Errorf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(res.stderr, "container_engine") || !strings.Contains(res.stderr, "Things") {
		t.Errorf("stderr = %q", res.stderr)
	}

	// Stages refuse to run on an invalid configuration.
	res = execute(t, deps, "--appgen-config", file, "state", "show")
	if code := exitCode(t, res.err); code != ExitFailure {
		t.Errorf("stage exit code = %d, want %d", code, ExitFailure)
	}
}

func TestStateDirResolution(t *testing.T) {
	t.Parallel()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name        string
		flag        string
		destination string
		want        string
	}{
		{"flag wins", "/srv/state", "/srv/app", "/srv/state"},
		{"destination", "", "/srv/app", filepath.Join("/srv/app", DefaultStateDirName)},
		{"working directory", "", "", filepath.Join(cwd, DefaultStateDirName)},
		{"relative flag", "state", "", filepath.Join(cwd, "state")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			app := &App{opts: rootOptions{stateDir: tt.flag}}
			got, err := app.stateDir(tt.destination)
			if err != nil {
				t.Fatalf("stateDir() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("stateDir(%q) = %q, want %q", tt.destination, got, tt.want)
			}
		})
	}
}

func TestUsageErrorsAreNotRendered(t *testing.T) {
	t.Parallel()

	res := execute(t, Dependencies{}, "push_docker")
	if res.err == nil {
		t.Fatal("push_docker without a registry should fail")
	}
	var exitErr *ExitError
	if errors.As(res.err, &exitErr) {
		t.Errorf("argument errors should be left to cobra, got %v", exitErr)
	}
}
