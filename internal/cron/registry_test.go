package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry, err := NewRegistry(namedJob("orphan-media-sweep"), namedJob("second"))
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "orphan-media-sweep", jobs[0].Name())
	assert.Equal(t, "second", jobs[1].Name())

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRejectsInvalidJobs(t *testing.T) {
	_, err := NewRegistry(namedJob("sweep"), namedJob("sweep"))
	assert.ErrorContains(t, err, "already registered")

	registry := &Registry{}
	assert.Error(t, registry.Register(nil))
	assert.Error(t, registry.Register(namedJob("  ")))
	assert.Empty(t, registry.Jobs())
}
