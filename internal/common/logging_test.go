package common

import (
	"path/filepath"
	"testing"
)

func TestNewSilentLogger_FluentAPI(t *testing.T) {
	logger := NewSilentLogger()
	if logger == nil {
		t.Fatal("NewSilentLogger returned nil")
	}

	// Must not panic.
	logger.Info().Str("code", "2330").Msg("test message")
	logger.Warn().Int("chunk", 2).Msg("warning")
	logger.Error().Err(nil).Msg("error message")
	logger.Debug().Bool("ok", true).Msg("debug")
}

func TestNewLoggerFromConfig_Defaults(t *testing.T) {
	logger := NewLoggerFromConfig(LoggingConfig{})
	if logger == nil {
		t.Fatal("NewLoggerFromConfig returned nil")
	}
	logger.Debug().Msg("below default level")
}

func TestNewLoggerFromConfig_FileOutput(t *testing.T) {
	logger := NewLoggerFromConfig(LoggingConfig{
		Level:    "debug",
		Outputs:  []string{"file"},
		FilePath: filepath.Join(t.TempDir(), "screener.log"),
	})
	if logger == nil {
		t.Fatal("NewLoggerFromConfig returned nil")
	}
	logger.Info().Str("run", "test").Msg("file logger")
}

func TestWithCorrelationId(t *testing.T) {
	logger := NewSilentLogger().WithCorrelationId("run-123")
	if logger == nil || logger.ILogger == nil {
		t.Fatal("WithCorrelationId returned nil")
	}
	logger.Info().Msg("tagged")
}
