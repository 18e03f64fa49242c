package domain

import "strings"

// Mode identifies which input section is active and which endpoint a submission targets.
type Mode string

// ModeSingle and related constants define the supported input modes.
const (
	ModeSingle Mode = "single"
	ModeBatch  Mode = "batch"
	ModeFile   Mode = "file"
)

// Modes returns every input mode in tab order.
func Modes() []Mode {
	return []Mode{ModeSingle, ModeBatch, ModeFile}
}

// ParseMode normalizes one mode name.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeSingle:
		return ModeSingle, nil
	case ModeBatch:
		return ModeBatch, nil
	case ModeFile:
		return ModeFile, nil
	default:
		return "", ErrInvalidMode
	}
}

// Valid reports whether the mode is one of the supported values.
func (m Mode) Valid() bool {
	switch m {
	case ModeSingle, ModeBatch, ModeFile:
		return true
	default:
		return false
	}
}

// Endpoint returns the API path serving the mode.
func (m Mode) Endpoint() string {
	switch m {
	case ModeSingle:
		return "/analyze/single"
	case ModeBatch:
		return "/analyze/batch"
	case ModeFile:
		return "/analyze/upload"
	default:
		return ""
	}
}

// Label returns the tab title for the mode.
func (m Mode) Label() string {
	switch m {
	case ModeSingle:
		return "Single word"
	case ModeBatch:
		return "Batch"
	case ModeFile:
		return "File upload"
	default:
		return string(m)
	}
}

// Next returns the mode delta steps away in tab order, wrapping at both ends.
func (m Mode) Next(delta int) Mode {
	modes := Modes()
	idx := 0
	for i, candidate := range modes {
		if candidate == m {
			idx = i
			break
		}
	}
	idx = ((idx+delta)%len(modes) + len(modes)) % len(modes)
	return modes[idx]
}
