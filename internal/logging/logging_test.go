package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/Veraticus/shopassist/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		cfg  config.LoggingConfig
		want zapcore.Level
	}{
		{config.LoggingConfig{Level: "info", Format: "json"}, zapcore.InfoLevel},
		{config.LoggingConfig{Level: "DEBUG", Format: "console"}, zapcore.DebugLevel},
		{config.LoggingConfig{Level: "warn"}, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.cfg)
		if err != nil {
			t.Fatalf("New(%+v) error = %v", tt.cfg, err)
		}
		if !logger.Core().Enabled(tt.want) {
			t.Errorf("New(%+v) does not log at %v", tt.cfg, tt.want)
		}
		if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
			t.Errorf("New(%+v) logs below %v", tt.cfg, tt.want)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "chatty"}); err == nil {
		t.Error("New() accepted an unknown level")
	}
}
