package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), "level %q", in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")

	l.Info().Str("user", "a").Msg("hello")

	assert.JSONEq(t, `{"level":"info","user":"a","message":"hello"}`, buf.String())
}

func TestNewConsole_Verbosity(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewConsole(&buf, false)
	quiet.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	verbose := NewConsole(&buf, true)
	verbose.Debug().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
