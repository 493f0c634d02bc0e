package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Str("component", "test").Msg("shown")
	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Contains(t, buf.String(), `"time"`)
}

func TestNewWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, zerolog.InfoLevel, NewWithWriter(&buf, "verbose").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewWithWriter(&buf, "").GetLevel())
	assert.Equal(t, zerolog.DebugLevel, NewWithWriter(&buf, "DEBUG").GetLevel())
}
