package noetic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTripPreservesState(t *testing.T) {
	e := New(DefaultConfig(), nil, 1)
	require.NoError(t, e.Learn("cats eat fish"))
	require.NoError(t, e.Learn("cats are mammals"))
	_, err := e.Answer(context.Background(), "cats", ModeBalanced)
	require.NoError(t, err)

	data, err := e.Export()
	require.NoError(t, err)

	restored, err := Import(data, nil, 2)
	require.NoError(t, err)

	beforeMetrics := e.Metrics()
	afterMetrics := restored.Metrics()
	assert.Equal(t, beforeMetrics.NodeCount, afterMetrics.NodeCount)
	assert.Equal(t, beforeMetrics.EdgeCount, afterMetrics.EdgeCount)
	assert.Equal(t, beforeMetrics.Cycle, afterMetrics.Cycle)
	assert.InDelta(t, beforeMetrics.BaselineFitness, afterMetrics.BaselineFitness, 1e-9)

	require.Len(t, restored.field.C, len(e.field.C))
	for i := range e.field.C {
		assert.InDelta(t, e.field.C[i], restored.field.C[i], 1e-9)
	}
}

// TestExportIsByteIdenticalAcrossCalls covers §8 property 5 directly:
// two successive Export() calls on an unmutated engine with several edges
// and a multi-node dimension cluster must gob-encode to the same bytes.
// Map iteration order (edges, dimension clusters) must not leak into the
// encoding.
func TestExportIsByteIdenticalAcrossCalls(t *testing.T) {
	e := New(DefaultConfig(), nil, 1)
	require.NoError(t, e.Learn("cats eat fish"))
	require.NoError(t, e.Learn("cats are mammals"))
	require.NoError(t, e.Learn("cats chase mice"))
	require.NoError(t, e.Learn("dogs chase cats"))
	for i := 0; i < 5; i++ {
		_, err := e.Answer(context.Background(), "cats", ModeBalanced)
		require.NoError(t, err)
	}

	first, err := e.Export()
	require.NoError(t, err)
	second, err := e.Export()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	restored, err := Import(first, nil, 2)
	require.NoError(t, err)
	reexported, err := restored.Export()
	require.NoError(t, err)
	assert.Equal(t, first, reexported)
}

func TestImportRejectsTruncatedPayload(t *testing.T) {
	e := New(DefaultConfig(), nil, 1)
	data, err := e.Export()
	require.NoError(t, err)

	// Truncated payload: gob decode should fail cleanly, not panic.
	_, err = Import(append([]byte(nil), data[:len(data)/2]...), nil, 1)
	assert.Error(t, err)
}
