package project

import (
	"errors"
	"strings"
)

// DefaultDuration is the slot length in seconds used by new projects.
const DefaultDuration uint32 = 30

var (
	ErrNoCountdown  = errors.New("no countdown configured")
	ErrZeroDuration = errors.New("clip duration must be positive")
)

// Settings are the project-wide export parameters.
type Settings struct {
	// Duration is the length in seconds of each slot, countdown included.
	Duration  uint32
	Countdown string
}

// DefaultSettings returns the settings of a new project.
func DefaultSettings() Settings {
	return Settings{Duration: DefaultDuration}
}

// Validate checks the settings are usable for an export.
func (s Settings) Validate() error {
	if s.Duration == 0 {
		return ErrZeroDuration
	}
	if strings.TrimSpace(s.Countdown) == "" {
		return ErrNoCountdown
	}
	return nil
}
