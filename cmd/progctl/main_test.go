package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gripforce/progctl/pkg/progressor"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{name: "numeric version gets v prefix", version: "1.2.3", want: "v1.2.3"},
		{name: "dev version unchanged", version: "dev", want: "dev"},
		{name: "already prefixed unchanged", version: "v2.0.0", want: "v2.0.0"},
		{name: "empty unchanged", version: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatVersion(tt.version))
		})
	}
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "no transport gets actionable message",
			err:  fmt.Errorf("connect: %w", progressor.ErrNoTransport),
			want: "Bluetooth is unavailable. Check that Bluetooth is turned on and try again.",
		},
		{
			name: "not connected",
			err:  progressor.ErrNotConnected,
			want: "Not connected to a device. Is the Progressor awake and in range?",
		},
		{
			name: "unknown error passes through",
			err:  errors.New("something odd"),
			want: "something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"scan", "monitor", "info", "tare", "sleep", "serve"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
