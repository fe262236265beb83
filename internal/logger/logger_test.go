package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestNewJSONWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", Format: "json", Service: "tradein", Writer: &buf})

	l.Debug().Msg("dropped")
	l.Info().Str("strategy", "sku").Msg("resolved")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "resolved", line["message"])
	assert.Equal(t, "sku", line["strategy"])
	assert.Equal(t, "tradein", line["service"])
}

func TestNamedAddsComponent(t *testing.T) {
	l := Named("resolver")
	require.NotNil(t, l)
	assert.NotNil(t, Nop())
}
