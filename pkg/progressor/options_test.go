package progressor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultTimings(t *testing.T) {
	timings := DefaultTimings()

	assert.Equal(t, 2*time.Second, timings.CommandTimeout)
	assert.Equal(t, 200*time.Millisecond, timings.InterCommandDelay)
	assert.Equal(t, 300*time.Millisecond, timings.BootstrapDelay)
	assert.Equal(t, 3*time.Second, timings.StallWindow)
	assert.Equal(t, time.Second, timings.WatchdogInterval)
	assert.Equal(t, 500*time.Millisecond, timings.RecoverySettle)
	assert.Equal(t, 2*time.Second, timings.ReconnectDelay)
	assert.Equal(t, 3, timings.MaxReconnectAttempts)
}

func TestTimingsYAMLPartialOverride(t *testing.T) {
	timings := DefaultTimings()
	doc := `
stall_window: 5s
max_reconnect_attempts: 7
`
	require.NoError(t, yaml.Unmarshal([]byte(doc), &timings))

	assert.Equal(t, 5*time.Second, timings.StallWindow)
	assert.Equal(t, 7, timings.MaxReconnectAttempts)
	// Everything else keeps its default.
	assert.Equal(t, 2*time.Second, timings.CommandTimeout)
	assert.Equal(t, 200*time.Millisecond, timings.InterCommandDelay)
}

func TestTimingsYAMLBadDuration(t *testing.T) {
	timings := DefaultTimings()
	err := yaml.Unmarshal([]byte("command_timeout: fast"), &timings)
	assert.Error(t, err)
}
