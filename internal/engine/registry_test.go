// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/phylorun/phylorun/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const beast2XML = `<beast version="2.7"><data/><run/></beast>`

// stubEngine accepts every file and never runs anything.
type stubEngine struct{ name Name }

func (s stubEngine) Name() Name { return s.name }
func (s stubEngine) CanRunAnalysis(string) bool { return true }

func (s stubEngine) RunLocalAnalysis(context.Context, string, string, []string) (types.ExitCode, error) {
	return types.ExitSuccess, nil
}

func (s stubEngine) RunContainerizedAnalysis(context.Context, string, []string) (types.ExitCode, error) {
	return types.ExitSuccess, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewDefaultRegistry(Deps{})
	require.NoError(t, err)
	return reg
}

func TestNewDefaultRegistry_Order(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Name{NameBeast2, NameBeastX, NameRevBayes, NameLPhy}, newTestRegistry(t).Names())
}

func TestNewRegistry_DuplicateNames(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(nil, stubEngine{"beast2"}, stubEngine{"BEAST2"})
	assert.ErrorIs(t, err, ErrDuplicateEngine)
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	for _, name := range []string{"revbayes", "RevBayes", "REVBAYES"} {
		e, err := reg.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, NameRevBayes, e.Name())
	}

	_, err := reg.Lookup("mrbayes")
	require.ErrorIs(t, err, ErrUnknownEngine)
	assert.Equal(t, "Engine 'mrbayes' is not available.", err.Error())

	unknown, ok := errors.AsType[*UnknownEngineError](err)
	require.True(t, ok)
	assert.Equal(t, reg.Names(), unknown.Available)
}

func TestRegistry_Detect(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	tests := []struct {
		file    string
		content string
		want    Name
	}{
		{"analysis.xml", beast2XML, NameBeast2},
		{"analysis.xml", `<beast version="10.5.0"><mcmc/></beast>`, NameBeastX},
		{"analysis.rev", "", NameRevBayes},
		{"analysis.lphy", "", NameLPhy},
		{"analysis.phylospec", "", NameRevBayes},
	}

	for _, tt := range tests {
		t.Run(string(tt.want)+"/"+tt.file, func(t *testing.T) {
			t.Parallel()

			e, err := reg.Detect(writeAnalysis(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Name())
		})
	}
}

func TestRegistry_DetectNothing(t *testing.T) {
	t.Parallel()

	file := writeAnalysis(t, "notes.txt", "hello")
	_, err := newTestRegistry(t).Detect(file)

	require.ErrorIs(t, err, ErrNoEngineDetected)
	assert.Equal(t, "Could not detect a supported engine for file '"+file+"'.", err.Error())
}

func TestRegistry_Select(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	xmlFile := writeAnalysis(t, "analysis.xml", beast2XML)
	specFile := writeAnalysis(t, "analysis.phylospec", "")

	e, err := reg.Select("", xmlFile)
	require.NoError(t, err)
	assert.Equal(t, NameBeast2, e.Name())

	e, err = reg.Select("LPHY", specFile)
	require.NoError(t, err)
	assert.Equal(t, NameLPhy, e.Name(), "explicit engine overrides detection order")

	_, err = reg.Select("revbayes", xmlFile)
	require.ErrorIs(t, err, ErrEngineCannotRun)
	assert.Equal(t, "Engine 'revbayes' cannot run file '"+xmlFile+"'.", err.Error())

	_, err = reg.Select("mrbayes", xmlFile)
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestRegistry_Candidates(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	var names []Name
	for _, e := range reg.Candidates(writeAnalysis(t, "analysis.phylospec", "")) {
		names = append(names, e.Name())
	}
	assert.Equal(t, []Name{NameRevBayes, NameLPhy}, names)

	assert.Empty(t, reg.Candidates(writeAnalysis(t, "notes.txt", "")))
}

func TestProfileOf(t *testing.T) {
	t.Parallel()

	for _, name := range newTestRegistry(t).Names() {
		p, ok := ProfileOf(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, p.Display)
		assert.NotEmpty(t, p.Binary)
		assert.NotEmpty(t, p.Image)
	}

	_, ok := ProfileOf("mrbayes")
	assert.False(t, ok)
}
