package config

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the auto-save toggle.
type Mode string

const (
	ModeOn  Mode = "on"
	ModeOff Mode = "off"
)

// ErrInvalidMode is returned for anything other than on or off.
var ErrInvalidMode = errors.New("invalid mode")

// ParseMode accepts exactly "on" or "off".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOn:
		return ModeOn, nil
	case ModeOff:
		return ModeOff, nil
	}
	return "", fmt.Errorf("%w %q: use on or off", ErrInvalidMode, s)
}

// parseStoredMode also accepts the YAML boolean spellings that an unquoted
// on/off turns into.
func parseStoredMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes":
		return ModeOn, nil
	case "off", "false", "no":
		return ModeOff, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidMode, s)
}

// ResolveMode applies the precedence project, then global, then off.
func ResolveMode(project, global *Mode) Mode {
	if project != nil {
		return *project
	}
	if global != nil {
		return *global
	}
	return ModeOff
}
