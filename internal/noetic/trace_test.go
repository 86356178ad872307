package noetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracesResizeGrowsAndTruncates(t *testing.T) {
	tr := NewTraces()
	tr.Resize(2, 4)
	assert.Equal(t, 2, tr.Count())
	assert.Len(t, tr.Vector(0), 4)

	tr.Add(0, 1, 0.5)
	tr.Resize(2, 6)
	assert.Len(t, tr.Vector(0), 6)
	assert.InDelta(t, 0.5, tr.Vector(0)[1], 1e-9, "growing must preserve existing values")

	tr.Resize(1, 6)
	assert.Equal(t, 1, tr.Count())
	assert.Nil(t, tr.Vector(1))
}

func TestTracesDecay(t *testing.T) {
	tr := NewTraces()
	tr.Resize(1, 2)
	tr.Add(0, 0, 1.0)
	tr.Decay(0.5)
	assert.InDelta(t, 0.5, tr.Vector(0)[0], 1e-9)
}

func TestTracesAddOutOfRangeNoop(t *testing.T) {
	tr := NewTraces()
	tr.Resize(1, 2)
	tr.Add(5, 0, 1.0)  // bad dim
	tr.Add(0, 99, 1.0) // bad node index
	assert.Equal(t, 0.0, tr.Vector(0)[0])
	assert.Equal(t, 0.0, tr.Vector(0)[1])
}
