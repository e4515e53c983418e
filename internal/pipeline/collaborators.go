// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"strings"
)

type (
	// Repository describes a localized source repository.
	Repository struct {
		// Dir is the absolute working tree path.
		Dir string
		// Owner is the account or group owning the repository, if known.
		Owner string
		// Name is the repository name without a .git suffix.
		Name string
		// Commit is the full HEAD commit hash, empty for a repository without commits.
		Commit string
	}

	// ImageName is the namespace/repository:tag triple of a container image.
	// An empty Namespace means the image has no namespace component.
	ImageName struct {
		Namespace  string
		Repository string
		Tag        string
	}

	// BuildSpec is the input of ImageBuilder.Build.
	BuildSpec struct {
		Repository Repository
		Image      ImageName
		// ConfigFile is an optional build configuration file.
		ConfigFile string
	}

	// PushSpec is the input of ImagePusher.Push.
	PushSpec struct {
		// LocalReference is the image reference produced by the build.
		LocalReference string
		// Registry is the registry host, optionally followed by a path prefix.
		Registry string
		// Repository and Tag name the image inside the registry.
		Repository string
		Tag        string
	}

	// Parameter is one process input or output discovered in the application notebook.
	Parameter struct {
		Name        string
		Type        string
		Default     string
		Description string
		Output      bool
	}

	// GenerateSpec is the input of ArtifactGenerator.Generate.
	GenerateSpec struct {
		Repository Repository
		// Image is the container reference the generated process runs in.
		Image string
		// OutputDir is the absolute, already existing artifact directory.
		OutputDir string
		// Monolithic adds staging steps and a wrapping workflow.
		Monolithic bool
	}

	// CatalogEntry is an application known to the remote catalog.
	CatalogEntry struct {
		ID   string
		Name string
		// Published is false until the entry has been made public.
		Published bool
	}

	// ArtifactFile is one generated file handed to the catalog.
	ArtifactFile struct {
		// Name is the path relative to the artifact directory.
		Name    string
		Content []byte
	}

	// SourceLocalizer materializes a repository on local disk.
	SourceLocalizer interface {
		// Localize makes source available at dest (or a derived location when
		// dest is empty) and checks out revision when it is not empty.
		Localize(ctx context.Context, source, dest, revision string) (Repository, error)
		// Inspect reads metadata of an already localized repository.
		Inspect(ctx context.Context, dir string) (Repository, error)
	}

	// ImageBuilder turns a repository into a local container image.
	ImageBuilder interface {
		// Defaults derives an image name from repository metadata.
		Defaults(repo Repository) ImageName
		// Build produces the image and returns its local reference.
		Build(ctx context.Context, spec BuildSpec) (string, error)
	}

	// ImagePusher publishes a local image to a registry.
	ImagePusher interface {
		// Push returns the fully resolved remote reference.
		Push(ctx context.Context, spec PushSpec) (string, error)
	}

	// CloudRegistry provisions image repositories in a managed registry.
	CloudRegistry interface {
		// EnsureRepository creates the repository for image, or discovers it when
		// it already exists, and returns the registry prefix to push to.
		EnsureRepository(ctx context.Context, image ImageName) (string, error)
		// Login exchanges cloud credentials for a registry login of the container engine.
		Login(ctx context.Context) error
	}

	// ArtifactGenerator introspects the application and writes its process descriptions.
	ArtifactGenerator interface {
		Parameters(ctx context.Context, repo Repository) ([]Parameter, error)
		// Generate writes the artifacts and returns the written paths.
		Generate(ctx context.Context, spec GenerateSpec) ([]string, error)
	}

	// Catalog is the remote application registry.
	Catalog interface {
		// Lookup returns the entry registered under name, or nil when there is none.
		Lookup(ctx context.Context, name string) (*CatalogEntry, error)
		// Get returns the entry with id, or nil when there is none.
		Get(ctx context.Context, id string) (*CatalogEntry, error)
		// Register creates a new, empty entry.
		Register(ctx context.Context, name string) (*CatalogEntry, error)
		// Upload stores files as a new version of the entry.
		Upload(ctx context.Context, id string, files []ArtifactFile) error
		// Publish makes the entry publicly visible.
		Publish(ctx context.Context, id string) error
	}
)

// Reference renders the image name as [namespace/]repository:tag.
func (n ImageName) Reference() string {
	var b strings.Builder
	if n.Namespace != "" {
		b.WriteString(n.Namespace)
		b.WriteByte('/')
	}
	b.WriteString(n.Repository)
	if n.Tag != "" {
		b.WriteByte(':')
		b.WriteString(n.Tag)
	}
	return b.String()
}

// Path renders the image name without its tag.
func (n ImageName) Path() string {
	if n.Namespace == "" {
		return n.Repository
	}
	return n.Namespace + "/" + n.Repository
}
