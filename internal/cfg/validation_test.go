package cfg

import (
	"strings"
	"testing"
	"time"

	"dga-engine/internal/ml"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		DataPath:         "data",
		ModelDir:         "models",
		Folds:            5,
		Seed:             42,
		Workers:          4,
		NormativeMode:    "local",
		NormativeTimeout: 5 * time.Second,
		ServerPort:       8080,
		LogLevel:         "info",
		Hyperparameters:  ml.DefaultHyperparameters(),
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	err := validateSettings(settings)
	if err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantMsg string
	}{
		{"empty data path", func(s *Settings) { s.DataPath = "" }, "data path"},
		{"empty model dir", func(s *Settings) { s.ModelDir = "" }, "model directory"},
		{"one fold", func(s *Settings) { s.Folds = 1 }, "folds must be between"},
		{"too many folds", func(s *Settings) { s.Folds = 101 }, "folds must be between"},
		{"no workers", func(s *Settings) { s.Workers = 0 }, "workers"},
		{"unknown normative mode", func(s *Settings) { s.NormativeMode = "cloud" }, "normative mode"},
		{"remote without url", func(s *Settings) { s.NormativeMode = "remote" }, "normative URL"},
		{"timeout too short", func(s *Settings) { s.NormativeTimeout = time.Millisecond }, "normative timeout"},
		{"timeout too long", func(s *Settings) { s.NormativeTimeout = time.Hour }, "normative timeout"},
		{"privileged port", func(s *Settings) { s.ServerPort = 80 }, "server port"},
		{"port out of range", func(s *Settings) { s.ServerPort = 70000 }, "server port"},
		{"bad log level", func(s *Settings) { s.LogLevel = "loud" }, "log level"},
		{"bad hyperparameters", func(s *Settings) { s.Hyperparameters.KNNNeighbors = 0 }, "knn_neighbors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatalf("Expected error for %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestValidateSettings_RemoteWithURL(t *testing.T) {
	settings := createValidSettings()
	settings.NormativeMode = "remote"
	settings.NormativeURL = "http://localhost:8081"

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected remote config to pass, got error: %v", err)
	}
}
