package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"tgscraper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name: "config with file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(os.TempDir(), "tgscraper_test.log"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}

			if tt.cfg.File != "" {
				os.Remove(tt.cfg.File)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"nonsense", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if !tt.wantErr && level != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	base, err := New(&config.LoggingConfig{Level: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	child := base.WithField("channel", "alpha")
	grandchild := child.WithField("message_id", 7)

	baseImpl := base.(*zerologLogger)
	childImpl := child.(*zerologLogger)
	grandImpl := grandchild.(*zerologLogger)

	if len(baseImpl.fields) != 0 {
		t.Errorf("Base logger gained fields: %v", baseImpl.fields)
	}
	if len(childImpl.fields) != 1 {
		t.Errorf("Child logger has %d fields, want 1", len(childImpl.fields))
	}
	if len(grandImpl.fields) != 2 {
		t.Errorf("Grandchild logger has %d fields, want 2", len(grandImpl.fields))
	}
}

func TestWithErrorNil(t *testing.T) {
	base, err := New(&config.LoggingConfig{Level: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if base.WithError(nil) != base {
		t.Error("WithError(nil) must return the same logger")
	}
}
