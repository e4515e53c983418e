// SPDX-License-Identifier: MPL-2.0

package image

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"appgen-cli/internal/container"
	"appgen-cli/internal/logging"
	"appgen-cli/internal/pipeline"
)

const (
	// DefaultPushAttempts is the number of push attempts for transient failures.
	DefaultPushAttempts = 3
	// DefaultPushBackoff is the wait before the first retry; it doubles per attempt.
	DefaultPushBackoff = 2 * time.Second
)

type (
	// PusherOption configures a Pusher.
	PusherOption func(*Pusher)

	// Pusher tags a local image for a registry and pushes it, retrying
	// transient engine failures.
	Pusher struct {
		engine      container.Engine
		maxAttempts int
		backoff     time.Duration
		stdout      io.Writer
		stderr      io.Writer
		logger      *log.Logger
	}
)

// WithRetry sets the push attempt count and base backoff.
func WithRetry(maxAttempts int, backoff time.Duration) PusherOption {
	return func(p *Pusher) {
		p.maxAttempts = maxAttempts
		p.backoff = backoff
	}
}

// WithPushOutput sets where push progress is streamed.
func WithPushOutput(stdout, stderr io.Writer) PusherOption {
	return func(p *Pusher) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithPusherLogger sets the logger.
func WithPusherLogger(logger *log.Logger) PusherOption {
	return func(p *Pusher) {
		p.logger = logger
	}
}

// NewPusher creates a Pusher on top of engine.
func NewPusher(engine container.Engine, opts ...PusherOption) *Pusher {
	p := &Pusher{
		engine:      engine,
		maxAttempts: DefaultPushAttempts,
		backoff:     DefaultPushBackoff,
		stdout:      io.Discard,
		stderr:      io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.Component(logging.Ensure(p.logger), "push")
	return p
}

// RemoteReference joins registry, repository and tag into <registry>/<repository>:<tag>.
func RemoteReference(registry, repository, tag string) string {
	ref := strings.TrimSuffix(registry, "/") + "/" + repository
	if tag != "" {
		ref += ":" + tag
	}
	return ref
}

// Push tags spec.LocalReference with its remote name and pushes it.
func (p *Pusher) Push(ctx context.Context, spec pipeline.PushSpec) (string, error) {
	if spec.Registry == "" || spec.Repository == "" {
		return "", errors.New("push requires a registry and a repository")
	}

	local := container.ImageReference(spec.LocalReference)
	remote := container.ImageReference(RemoteReference(spec.Registry, spec.Repository, spec.Tag))

	if err := p.engine.Tag(ctx, local, remote); err != nil {
		return "", err
	}

	err := container.RetryWithBackoff(ctx, p.maxAttempts, p.backoff, func(attempt int) (bool, error) {
		if attempt > 0 {
			p.logger.Warn("retrying push", "image", remote, "attempt", attempt+1)
		}
		err := p.engine.Push(ctx, container.PushOptions{Image: remote, Stdout: p.stdout, Stderr: p.stderr})
		return container.IsTransientError(err), err
	})
	if err != nil {
		return "", err
	}
	return string(remote), nil
}
