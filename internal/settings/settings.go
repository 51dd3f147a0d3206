package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSystemInstructions = "You are a helpful assistant."
	DefaultTemperature        = 0.7

	minTemperature = 0.0
	maxTemperature = 2.0
)

// Settings is the persisted generation configuration. It is read at
// orchestration time and written back whenever the settings pane is dismissed;
// the chat core does not own it.
type Settings struct {
	UseStreaming       bool    `yaml:"use_streaming"`
	Temperature        float64 `yaml:"temperature"`
	SystemInstructions string  `yaml:"system_instructions"`
}

func Default() Settings {
	return Settings{
		UseStreaming:       true,
		Temperature:        DefaultTemperature,
		SystemInstructions: DefaultSystemInstructions,
	}
}

// Clamp forces Temperature into the supported [0,2] range and replaces empty
// instructions with the default, so a hand-edited file cannot produce an
// unusable configuration.
func (s *Settings) Clamp() {
	if s.Temperature < minTemperature {
		s.Temperature = minTemperature
	}
	if s.Temperature > maxTemperature {
		s.Temperature = maxTemperature
	}
	if s.SystemInstructions == "" {
		s.SystemInstructions = DefaultSystemInstructions
	}
}

// Load reads settings from path. A missing file is not an error; it yields
// the defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read settings file: %w", err)
	}

	out := Default()
	if err := yaml.Unmarshal(data, &out); err != nil {
		return Default(), fmt.Errorf("parse settings file: %w", err)
	}
	out.Clamp()
	return out, nil
}

func Save(path string, s Settings) error {
	s.Clamp()
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
