// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// ContainerEngineDocker uses Docker to build and push images.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman uses Podman to build and push images.
	ContainerEnginePodman ContainerEngine = "podman"

	// DefaultRepo2DockerBinary builds images for repositories without a Dockerfile.
	DefaultRepo2DockerBinary = "jupyter-repo2docker"
	// DefaultPushAttempts bounds image push retries.
	DefaultPushAttempts = 3
	// DefaultPushBackoff is the delay before the first push retry.
	DefaultPushBackoff = 2 * time.Second
	// DefaultNotebookDir is where the notebook lives inside the image.
	DefaultNotebookDir = "/home/jovyan"
	// DefaultStageImage runs the monolithic stage in and stage out steps.
	DefaultStageImage = "ghcr.io/unity-sds/unity-data-services:latest"
	// DefaultCatalogURL is the public Dockstore API.
	DefaultCatalogURL = "https://dockstore.org/api"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidPushConfig is the sentinel error wrapped by InvalidPushConfigError.
	ErrInvalidPushConfig = errors.New("invalid push config")
	// ErrInvalidCWLConfig is the sentinel error wrapped by InvalidCWLConfigError.
	ErrInvalidCWLConfig = errors.New("invalid cwl config")
	// ErrInvalidCatalogURL is returned when catalog.api_url is not an absolute http(s) URL.
	ErrInvalidCatalogURL = errors.New("invalid catalog API URL")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container CLI builds and pushes images.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// InvalidPushConfigError collects the field errors of a PushConfig.
	InvalidPushConfigError struct {
		FieldErrors []error
	}

	// InvalidCWLConfigError collects the field errors of a CWLConfig.
	InvalidCWLConfigError struct {
		FieldErrors []error
	}

	// InvalidCatalogURLError is returned for an unusable catalog.api_url.
	InvalidCatalogURLError struct {
		Value string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// ContainerEngine selects "docker" or "podman"
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		Build           BuildConfig     `json:"build" mapstructure:"build"`
		Push            PushConfig      `json:"push" mapstructure:"push"`
		ECR             ECRConfig       `json:"ecr" mapstructure:"ecr"`
		CWL             CWLConfig       `json:"cwl" mapstructure:"cwl"`
		Catalog         CatalogConfig   `json:"catalog" mapstructure:"catalog"`
		UI              UIConfig        `json:"ui" mapstructure:"ui"`
	}

	// BuildConfig configures image builds.
	BuildConfig struct {
		// Repo2DockerBinary is the repo2docker executable, looked up in PATH
		Repo2DockerBinary string `json:"repo2docker_binary" mapstructure:"repo2docker_binary"`
	}

	// PushConfig configures image pushes.
	PushConfig struct {
		MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
		Backoff     time.Duration `json:"backoff" mapstructure:"backoff"`
	}

	// ECRConfig configures the AWS container registry.
	ECRConfig struct {
		// Region overrides the region of the AWS shared configuration
		Region string `json:"region" mapstructure:"region"`
	}

	// CWLConfig configures artifact generation.
	CWLConfig struct {
		NotebookDir string `json:"notebook_dir" mapstructure:"notebook_dir"`
		StageImage  string `json:"stage_image" mapstructure:"stage_image"`
	}

	// CatalogConfig configures the application catalog.
	CatalogConfig struct {
		APIURL string `json:"api_url" mapstructure:"api_url"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface for InvalidContainerEngineError.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error {
	return ErrInvalidContainerEngine
}

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// IsValid returns whether the ContainerEngine is one of the defined engine types,
// and a list of validation errors if it is not.
func (ce ContainerEngine) IsValid() (bool, []error) {
	switch ce {
	case ContainerEngineDocker, ContainerEnginePodman:
		return true, nil
	default:
		return false, []error{&InvalidContainerEngineError{Value: ce}}
	}
}

// IsValid reports whether the push settings are usable.
func (c PushConfig) IsValid() (bool, []error) {
	var errs []error
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.Backoff < 0 {
		errs = append(errs, fmt.Errorf("backoff must not be negative, got %s", c.Backoff))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidPushConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPushConfigError.
func (e *InvalidPushConfigError) Error() string {
	return fmt.Sprintf("invalid push config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidPushConfig for errors.Is() compatibility.
func (e *InvalidPushConfigError) Unwrap() error { return ErrInvalidPushConfig }

// IsValid reports whether the notebook directory is absolute and the stage
// image is set.
func (c CWLConfig) IsValid() (bool, []error) {
	var errs []error
	if !path.IsAbs(c.NotebookDir) {
		errs = append(errs, fmt.Errorf("notebook_dir must be an absolute path, got %q", c.NotebookDir))
	}
	if strings.TrimSpace(c.StageImage) == "" {
		errs = append(errs, errors.New("stage_image must not be empty"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidCWLConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidCWLConfigError.
func (e *InvalidCWLConfigError) Error() string {
	return fmt.Sprintf("invalid cwl config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidCWLConfig for errors.Is() compatibility.
func (e *InvalidCWLConfigError) Unwrap() error { return ErrInvalidCWLConfig }

// IsValid reports whether the API URL is absolute http(s).
func (c CatalogConfig) IsValid() (bool, []error) {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false, []error{&InvalidCatalogURLError{Value: c.APIURL}}
	}
	return true, nil
}

// Error implements the error interface for InvalidCatalogURLError.
func (e *InvalidCatalogURLError) Error() string {
	return fmt.Sprintf("invalid catalog API URL %q: must be an absolute http(s) URL", e.Value)
}

// Unwrap returns ErrInvalidCatalogURL for errors.Is() compatibility.
func (e *InvalidCatalogURLError) Unwrap() error { return ErrInvalidCatalogURL }

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, check := range []func() (bool, []error){
		c.ContainerEngine.IsValid,
		c.Push.IsValid,
		c.CWL.IsValid,
		c.Catalog.IsValid,
	} {
		if valid, fieldErrs := check(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns the sentinel and every field error, so errors.Is matches
// both ErrInvalidConfig and the sentinel of the failing field.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineDocker,
		Build:           BuildConfig{Repo2DockerBinary: DefaultRepo2DockerBinary},
		Push:            PushConfig{MaxAttempts: DefaultPushAttempts, Backoff: DefaultPushBackoff},
		CWL:             CWLConfig{NotebookDir: DefaultNotebookDir, StageImage: DefaultStageImage},
		Catalog:         CatalogConfig{APIURL: DefaultCatalogURL},
	}
}
