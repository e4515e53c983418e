// SPDX-License-Identifier: MPL-2.0

// Package ecr provisions image repositories in Amazon ECR and logs the
// container engine into the registry.
package ecr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/charmbracelet/log"

	"appgen-cli/internal/container"
	"appgen-cli/internal/issue"
	"appgen-cli/internal/logging"
	"appgen-cli/internal/pipeline"
)

var (
	// ErrNoAuthorizationData is returned when ECR issues no login token.
	ErrNoAuthorizationData = errors.New("ecr returned no authorization data")

	// ErrMalformedToken is returned when a login token is not base64 "user:password".
	ErrMalformedToken = errors.New("malformed ecr authorization token")
)

type (
	// API is the subset of the ECR client used by Registry.
	API interface {
		CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
		DescribeRepositories(
			ctx context.Context,
			params *ecr.DescribeRepositoriesInput,
			optFns ...func(*ecr.Options),
		) (*ecr.DescribeRepositoriesOutput, error)
		GetAuthorizationToken(
			ctx context.Context,
			params *ecr.GetAuthorizationTokenInput,
			optFns ...func(*ecr.Options),
		) (*ecr.GetAuthorizationTokenOutput, error)
	}

	// Option configures a Registry.
	Option func(*Registry)

	// Registry implements pipeline.CloudRegistry on top of ECR.
	Registry struct {
		client API
		engine container.Engine
		logger *log.Logger
	}

	// Credentials are the engine login parameters derived from an ECR token.
	Credentials struct {
		Registry string
		Username string
		Password string
	}
)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New loads the default AWS credential chain and returns a Registry. An empty
// region defers to AWS_REGION and the shared config files.
func New(ctx context.Context, region string, engine container.Engine, opts ...Option) (*Registry, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewWithClient(ecr.NewFromConfig(cfg), engine, opts...), nil
}

// NewWithClient returns a Registry using client.
func NewWithClient(client API, engine container.Engine, opts ...Option) *Registry {
	r := &Registry{client: client, engine: engine}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Component(logging.Ensure(r.logger), "ecr")
	return r
}

// RepositoryName returns the ECR repository name for image: namespace/repository,
// or just the repository without a namespace.
func RepositoryName(image pipeline.ImageName) string {
	return image.Path()
}

// EnsureRepository creates the ECR repository for image, or describes it when it
// already exists, and returns the registry prefix images are pushed under.
func (r *Registry) EnsureRepository(ctx context.Context, image pipeline.ImageName) (string, error) {
	name := RepositoryName(image)
	if name == "" {
		return "", errors.New("image repository name is empty")
	}

	r.logger.Info("creating repository", "repository", name)
	uri, err := r.create(ctx, name)
	if err != nil {
		var exists *types.RepositoryAlreadyExistsException
		if !errors.As(err, &exists) {
			return "", fmt.Errorf("create repository %s: %w", name, err)
		}
		r.logger.Debug("repository already exists", "repository", name)
		if uri, err = r.describe(ctx, name); err != nil {
			return "", err
		}
	}

	return registryPrefix(uri, image.Repository), nil
}

func (r *Registry) create(ctx context.Context, name string) (string, error) {
	out, err := r.client.CreateRepository(ctx, &ecr.CreateRepositoryInput{RepositoryName: aws.String(name)})
	if err != nil {
		return "", err
	}
	if out.Repository == nil {
		return "", fmt.Errorf("create repository %s: empty response", name)
	}
	return aws.ToString(out.Repository.RepositoryUri), nil
}

func (r *Registry) describe(ctx context.Context, name string) (string, error) {
	out, err := r.client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{RepositoryNames: []string{name}})
	if err != nil {
		return "", fmt.Errorf("describe repository %s: %w", name, err)
	}
	if len(out.Repositories) == 0 {
		return "", fmt.Errorf("describe repository %s: not found", name)
	}
	return aws.ToString(out.Repositories[0].RepositoryUri), nil
}

// registryPrefix strips the trailing repository component from a repository URI.
func registryPrefix(uri, repository string) string {
	return strings.TrimSuffix(uri, "/"+repository)
}

// Credentials exchanges AWS credentials for a registry login.
func (r *Registry) Credentials(ctx context.Context) (Credentials, error) {
	out, err := r.client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return Credentials{}, fmt.Errorf("get authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return Credentials{}, ErrNoAuthorizationData
	}
	return DecodeAuthorization(out.AuthorizationData[0])
}

// DecodeAuthorization decodes an ECR authorization record. The registry host
// is the proxy endpoint without its scheme.
func DecodeAuthorization(data types.AuthorizationData) (Credentials, error) {
	raw, err := base64.StdEncoding.DecodeString(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	user, password, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" {
		return Credentials{}, ErrMalformedToken
	}

	endpoint := aws.ToString(data.ProxyEndpoint)
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	return Credentials{Registry: strings.TrimSuffix(endpoint, "/"), Username: user, Password: password}, nil
}

// Login logs the container engine into the ECR registry.
func (r *Registry) Login(ctx context.Context) error {
	creds, err := r.Credentials(ctx)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("obtain registry credentials").
			WithResource("Amazon ECR").
			WithSuggestion("Check your AWS credentials (aws sts get-caller-identity)").
			WithIssue(issue.RegistryLoginFailedId).
			Wrap(err).
			BuildError()
	}

	r.logger.Info("logging in to registry", "registry", creds.Registry)
	return r.engine.Login(ctx, container.LoginOptions{
		Registry: creds.Registry,
		Username: creds.Username,
		Password: creds.Password,
	})
}
