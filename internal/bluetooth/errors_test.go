package bluetooth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gripforce/progctl/pkg/progressor"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "nil passes through",
			err:  nil,
			want: nil,
		},
		{
			name: "central manager state maps to no transport",
			err:  errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"),
			want: progressor.ErrNoTransport,
		},
		{
			name: "bluetooth off maps to no transport",
			err:  errors.New("Bluetooth is turned off"),
			want: progressor.ErrNoTransport,
		},
		{
			name: "device not connected",
			err:  errors.New("write failed: device not connected"),
			want: progressor.ErrNotConnected,
		},
		{
			name: "disconnected mid-operation",
			err:  errors.New("peripheral disconnected"),
			want: progressor.ErrNotConnected,
		},
		{
			name: "already connected",
			err:  errors.New("device already connected"),
			want: progressor.ErrAlreadyConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.True(t, errors.Is(got, tt.want), "got %v", got)
			// The original text survives the wrapping.
			assert.Contains(t, got.Error(), tt.err.Error())
		})
	}
}

func TestNormalizeErrorUnknownPassesThrough(t *testing.T) {
	orig := fmt.Errorf("some transient radio hiccup")
	got := normalizeError(orig)
	assert.Equal(t, orig, got)
}
