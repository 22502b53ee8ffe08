package progressor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gripforce/progctl/pkg/protocol"
)

func TestRecorderCapacityValidation(t *testing.T) {
	e := NewEvents()
	_, err := NewRecorder(e, 0)
	assert.Error(t, err)
	_, err = NewRecorder(e, -8)
	assert.Error(t, err)
}

func TestRecorderDrainOrder(t *testing.T) {
	e := NewEvents()
	r, err := NewRecorder(e, 16)
	require.NoError(t, err)
	defer r.Close()

	for i := 1; i <= 5; i++ {
		e.emitMeasurement(protocol.Measurement{Weight: float32(i), Timestamp: uint32(i * 100)})
	}

	got, err := r.Drain()
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, m := range got {
		assert.Equal(t, float32(i+1), m.Weight)
	}
	assert.Equal(t, uint64(5), r.Metrics().Recorded())

	// A drained buffer yields nothing.
	got, err = r.Drain()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecorderCurrentAndMax(t *testing.T) {
	e := NewEvents()
	r, err := NewRecorder(e, 16)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.Current()
	assert.False(t, ok)

	e.emitMeasurement(protocol.Measurement{Weight: 12.5, Timestamp: 1})
	e.emitMeasurement(protocol.Measurement{Weight: 40.0, Timestamp: 2})
	e.emitMeasurement(protocol.Measurement{Weight: 22.5, Timestamp: 3})

	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, float32(22.5), cur.Weight)
	assert.Equal(t, float32(40.0), r.Max())

	r.Reset()
	_, ok = r.Current()
	assert.False(t, ok)
	assert.Zero(t, r.Max())
}

func TestRecorderOverwritesOldest(t *testing.T) {
	e := NewEvents()
	r, err := NewRecorder(e, 4)
	require.NoError(t, err)
	defer r.Close()

	for i := 1; i <= 20; i++ {
		e.emitMeasurement(protocol.Measurement{Weight: float32(i), Timestamp: uint32(i)})
	}

	got, err := r.Drain()
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 4)
	assert.Equal(t, float32(20), got[len(got)-1].Weight,
		"the newest sample survives overwrite")
	assert.Greater(t, r.Metrics().Overwritten(), uint64(0))
	assert.Equal(t, uint64(20), r.Metrics().Recorded())
}

func TestRecorderCloseDetaches(t *testing.T) {
	e := NewEvents()
	r, err := NewRecorder(e, 8)
	require.NoError(t, err)

	e.emitMeasurement(protocol.Measurement{Weight: 1})
	r.Close()
	e.emitMeasurement(protocol.Measurement{Weight: 2})

	got, err := r.Drain()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float32(1), got[0].Weight)
}
