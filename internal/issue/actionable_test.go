// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "detect engine"},
			expected: "failed to detect engine",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "detect engine",
				Resource:  "analysis.xml",
			},
			expected: "failed to detect engine: analysis.xml",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "run beast2 locally",
				Resource:  "analysis.xml",
				Cause:     errors.New("no beast binary found"),
			},
			expected: "failed to run beast2 locally: analysis.xml: no beast binary found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := NewErrorContext().
		WithOperation("build container image").
		Wrap(fmt.Errorf("wrapped: %w", sentinel)).
		BuildError()

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the sentinel through the cause chain")
	}
	if _, ok := errors.AsType[*ActionableError](err); !ok {
		t.Error("errors.AsType should find the ActionableError")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("outer: %w", errors.New("inner"))
	ae := NewErrorContext().
		WithOperation("run revbayes locally").
		WithResource("model.rev").
		WithSuggestions("Install RevBayes", "Use --container").
		Wrap(cause).
		Build()

	short := ae.Format(false)
	if !strings.Contains(short, "\n  • Install RevBayes") || !strings.Contains(short, "\n  • Use --container") {
		t.Errorf("Format(false) missing suggestions:\n%s", short)
	}
	if strings.Contains(short, "Error chain") {
		t.Error("Format(false) should not include the error chain")
	}

	long := ae.Format(true)
	if !strings.Contains(long, "Error chain:") {
		t.Fatalf("Format(true) missing error chain:\n%s", long)
	}
	if !strings.Contains(long, "1. outer: inner") || !strings.Contains(long, "2. inner") {
		t.Errorf("Format(true) chain incomplete:\n%s", long)
	}
}

func TestErrorContext_BuildRequiresOperation(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without operation should return nil")
	}
}

func TestErrorContext_WithIssue(t *testing.T) {
	t.Parallel()

	ae := NewErrorContext().
		WithOperation("start container").
		WithIssue(ContainerUnavailableId).
		Build()

	if ae.Issue != ContainerUnavailableId {
		t.Errorf("Issue = %d, want %d", ae.Issue, ContainerUnavailableId)
	}
}

func TestErrorContext_DeduplicatesSuggestions(t *testing.T) {
	t.Parallel()

	ae := NewErrorContext().
		WithOperation("run BEAST X locally").
		WithSuggestions("Set BEAST_X to the binary path", "", "Use --container").
		WithSuggestion("Set BEAST_X to the binary path").
		Build()

	want := []string{"Set BEAST_X to the binary path", "Use --container"}
	if !slices.Equal(ae.Suggestions, want) {
		t.Errorf("Suggestions = %q, want %q", ae.Suggestions, want)
	}
}

// joinedError mimics phylorun's typed errors: sentinel first, cause last.
type joinedError struct{ sentinel, cause error }

func (e *joinedError) Error() string { return "exec rb: " + e.cause.Error() }
func (e *joinedError) Unwrap() []error { return []error{e.sentinel, e.cause} }

func TestChain_FollowsJoinedCause(t *testing.T) {
	t.Parallel()

	root := errors.New("permission denied")
	err := fmt.Errorf("run analysis: %w", &joinedError{
		sentinel: errors.New("execution failed"),
		cause:    fmt.Errorf("start: %w", root),
	})

	chain := Chain(err)
	if len(chain) != 4 {
		t.Fatalf("Chain() has %d entries, want 4: %q", len(chain), chain)
	}
	if chain[3] != root {
		t.Errorf("last entry = %v, want the root cause", chain[3])
	}

	long := NewErrorContext().WithOperation("run analysis").Wrap(err).Build().Format(true)
	if !strings.Contains(long, "4. permission denied") {
		t.Errorf("Format(true) should list the root cause:\n%s", long)
	}
}

func TestChain_Nil(t *testing.T) {
	t.Parallel()

	if got := Chain(nil); got != nil {
		t.Errorf("Chain(nil) = %v, want nil", got)
	}
}
