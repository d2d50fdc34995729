// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// transientMarkers are substrings of engine output that indicate a failure
// unrelated to the Dockerfile itself.
var transientMarkers = []string{
	// Network errors during base image pulls, apt-get, or the release download.
	"temporary failure resolving",
	"could not resolve host",
	"connection timed out",
	"connection refused",
	"connection reset by peer",
	"tls handshake timeout",
	"i/o timeout",
	"unable to establish ssl connection",
	// Registry throttling.
	"toomanyrequests",
	// Storage driver glitches.
	"error creating overlay mount",
	"error mounting layer",
	"oci runtime error",
}

// IsTransientError reports whether err looks like a transient engine failure
// that a manual retry may get past. phylorun never retries on its own; the
// classification only adds a suggestion to build errors.
//
// Context cancellation and deadline errors are never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Exit code 125 is a generic engine failure (daemon or storage error).
	if exitErr, ok := errors.AsType[*exec.ExitError](err); ok && exitErr.ExitCode() == 125 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
