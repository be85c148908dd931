// Package settings persists the presentational preferences of the chat shell.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Position anchors the chat panel inside the terminal.
type Position string

const (
	BottomRight Position = "bottom-right"
	BottomLeft  Position = "bottom-left"
	TopRight    Position = "top-right"
	TopLeft     Position = "top-left"
)

const (
	MinWidth  = 40
	MinHeight = 12
	MaxWidth  = 200
	MaxHeight = 80
)

// ChatSettings is the size and placement of the chat panel, in terminal cells.
type ChatSettings struct {
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	Position Position `yaml:"position"`
}

// Default returns the settings used when nothing has been saved yet.
func Default() ChatSettings {
	return ChatSettings{Width: 72, Height: 24, Position: BottomRight}
}

// Normalize clamps the size and replaces an unknown position with the default.
func (s ChatSettings) Normalize() ChatSettings {
	s.Width = clamp(s.Width, MinWidth, MaxWidth)
	s.Height = clamp(s.Height, MinHeight, MaxHeight)
	switch s.Position {
	case BottomRight, BottomLeft, TopRight, TopLeft:
	default:
		s.Position = Default().Position
	}
	return s
}

// Resize returns s grown or shrunk by the given deltas, clamped.
func (s ChatSettings) Resize(dw, dh int) ChatSettings {
	s.Width += dw
	s.Height += dh
	return s.Normalize()
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (ChatSettings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read settings: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("parse settings: %w", err)
	}
	return s.Normalize(), nil
}

// Save writes s to path, creating parent directories as needed.
func Save(path string, s ChatSettings) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	data, err := yaml.Marshal(s.Normalize())
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
