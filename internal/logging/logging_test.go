package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"dispute-arena/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		cfg  config.Log
		want zapcore.Level
	}{
		{config.Log{Level: "debug"}, zapcore.DebugLevel},
		{config.Log{Level: "WARN", Encoding: "console"}, zapcore.WarnLevel},
		{config.Log{Level: "loud"}, zapcore.InfoLevel},
		{config.Log{}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.cfg)
		if err != nil {
			t.Fatalf("New(%+v): %v", tt.cfg, err)
		}
		if !logger.Core().Enabled(tt.want) {
			t.Errorf("level %q: %v not enabled", tt.cfg.Level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
			t.Errorf("level %q: %v should be disabled", tt.cfg.Level, tt.want-1)
		}
	}
}
