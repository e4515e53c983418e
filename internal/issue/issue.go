// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	StateNotInitializedId Id = iota + 1
	StateCorruptId
	InvalidStateFieldId
	ImageNotBuiltId
	ImageNotAvailableId
	ArtifactsNotGeneratedId
	ContainerEngineNotFoundId
	DockerfileNotFoundId
	RegistryLoginFailedId
	NotebookNotFoundId
	CatalogTokenMissingId
	ConfigLoadFailedId
	RevisionNotFoundId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using the glamour style at
// stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	stateNotInitializedIssue = &Issue{
		id: StateNotInitializedId,
		mdMsg: `
# No application state found!

Every stage after init reads the state directory written by init.

## Things you can try:
- Initialize the state directory first:
~~~
$ appgen --state_directory ./state init https://github.com/org/app.git
~~~
- Check that --state_directory points at the same directory you used for init`,
	}

	stateCorruptIssue = &Issue{
		id: StateCorruptId,
		mdMsg: `
# Application state is corrupt!

The state directory exists but its record could not be read. It may be
missing, hold invalid JSON, or contain names this tool does not know.

## Things you can try:
- Inspect the record:
~~~
$ cat ./state/app_state.json
~~~
- Restore it from a backup, or remove the directory and run init again`,
	}

	invalidStateFieldIssue = &Issue{
		id: InvalidStateFieldId,
		mdMsg: `
# Unknown state value!

State values are addressed by a fixed set of names.

## Valid names:
- app_base_path
- app_registry_id
- cwl_output_path
- docker_image_namespace
- docker_image_reference
- docker_image_repository
- docker_image_tag
- docker_url
- source_repository`,
	}

	imageNotBuiltIssue = &Issue{
		id: ImageNotBuiltId,
		mdMsg: `
# No image has been built yet!

Pushing requires a local image reference recorded by the build stage.

## Things you can try:
~~~
$ appgen --state_directory ./state build_docker
~~~`,
	}

	imageNotAvailableIssue = &Issue{
		id: ImageNotAvailableId,
		mdMsg: `
# No container image to reference!

CWL generation needs an image: an explicit URL, a pushed image, or a built one.

## Things you can try:
- Build (and optionally push) the image first
- Or pass the image explicitly:
~~~
$ appgen --state_directory ./state build_cwl --image_url registry.example.com/app:1.0
~~~`,
	}

	artifactsNotGeneratedIssue = &Issue{
		id: ArtifactsNotGeneratedId,
		mdMsg: `
# CWL artifacts are missing!

Registration uploads the CWL files and the application descriptor written by
build_cwl.

## Things you can try:
~~~
$ appgen --state_directory ./state build_cwl
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Building and pushing images needs Docker or Podman.

## Things you can try:
- Install Docker: https://docs.docker.com/get-docker/
- Install Podman: https://podman.io/getting-started/installation
- Select the engine explicitly:
~~~
$ APPGEN_CONTAINER_ENGINE=podman appgen build_docker
~~~`,
	}

	dockerfileNotFoundIssue = &Issue{
		id: DockerfileNotFoundId,
		mdMsg: `
# Dockerfile not found!

No Dockerfile was found and jupyter-repo2docker is not installed.

## Searched locations:
1. The dockerfile named in the build configuration
2. Dockerfile
3. binder/Dockerfile
4. .binder/Dockerfile

## Things you can try:
- Add a Dockerfile to the repository
- Or install repo2docker:
~~~
$ pip install jupyter-repo2docker
~~~`,
	}

	registryLoginFailedIssue = &Issue{
		id: RegistryLoginFailedId,
		mdMsg: `
# Could not log in to the container registry!

## Things you can try:
- Check your AWS credentials:
~~~
$ aws sts get-caller-identity
~~~
- Make sure the region is set (AWS_REGION or ecr.region in the config)`,
	}

	notebookNotFoundIssue = &Issue{
		id: NotebookNotFoundId,
		mdMsg: `
# No notebook found!

The application repository must contain a Jupyter notebook, preferably
process.ipynb, with a cell tagged "parameters".

## Things you can try:
- Rename the main notebook to process.ipynb
- Tag the parameters cell in Jupyter (View > Cell Toolbar > Tags)`,
		extLinks: []HttpLink{"https://papermill.readthedocs.io/en/latest/usage-parameterize.html"},
	}

	catalogTokenMissingIssue = &Issue{
		id: CatalogTokenMissingId,
		mdMsg: `
# Application catalog token missing!

Registering an application needs an API token for the catalog.

## Things you can try:
~~~
$ appgen --state_directory ./state push_app_registry --token <TOKEN>
~~~
- Or set APPGEN_CATALOG_TOKEN`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Show where the configuration file is expected:
~~~
$ appgen config path
~~~
- Print the effective configuration:
~~~
$ appgen config show
~~~`,
	}

	revisionNotFoundIssue = &Issue{
		id: RevisionNotFoundId,
		mdMsg: `
# Revision not found!

The checkout revision is not a branch, tag or commit of the repository.

## Things you can try:
- List branches and tags:
~~~
$ git branch -a && git tag
~~~`,
	}

	catalog = []*Issue{
		stateNotInitializedIssue,
		stateCorruptIssue,
		invalidStateFieldIssue,
		imageNotBuiltIssue,
		imageNotAvailableIssue,
		artifactsNotGeneratedIssue,
		containerEngineNotFoundIssue,
		dockerfileNotFoundIssue,
		registryLoginFailedIssue,
		notebookNotFoundIssue,
		catalogTokenMissingIssue,
		configLoadFailedIssue,
		revisionNotFoundIssue,
	}

	issues = index(catalog)
)

func index(list []*Issue) map[Id]*Issue {
	m := make(map[Id]*Issue, len(list))
	for _, i := range list {
		m[i.Id()] = i
	}
	return m
}

// Values returns every known issue ordered by Id.
func Values() []*Issue {
	return slices.Clone(catalog)
}

func Get(id Id) *Issue {
	return issues[id]
}
