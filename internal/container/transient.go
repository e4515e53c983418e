// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// transientMarkers are fragments of engine or registry output that indicate a
// failure worth retrying.
var transientMarkers = []string{
	// Name resolution and connectivity.
	"Temporary failure resolving",
	"Could not resolve host",
	"no such host",
	"connection timed out",
	"connection refused",
	"connection reset by peer",
	"i/o timeout",
	"TLS handshake timeout",
	"unexpected EOF",
	// Registry side throttling and outages.
	"toomanyrequests",
	"429 Too Many Requests",
	"502 Bad Gateway",
	"503 Service Unavailable",
	"504 Gateway Timeout",
	// Storage driver races.
	"error creating overlay mount",
	"error mounting layer",
}

// IsTransientError reports whether err is a container engine failure that may
// succeed on retry, such as a network timeout or registry throttling.
//
// Context cancellation and deadline errors are never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Exit code 125 is a generic container engine error, often a transient
	// daemon or storage issue.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 125 {
		return true
	}

	errStr := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
