package tui

import "github.com/hylla/morfo/internal/domain"

// RuntimeConfig holds settings that can be reloaded while the form is open.
type RuntimeConfig struct {
	RenderMarkdown bool
	Credential     string

	// OutputStyle names the glamour style for highlighted JSON; blank means dark.
	OutputStyle string
}

// KeyConfig holds optional key overrides; blank fields keep the defaults.
type KeyConfig struct {
	CopyOutput string
	Reload     string
	ToggleHelp string
	NextMode   string
	PrevMode   string
}

// ReloadConfigFunc loads fresh runtime settings from disk.
type ReloadConfigFunc func() (RuntimeConfig, error)

// CopyFunc writes text to the system clipboard.
type CopyFunc func(string) error

// Option configures a Model.
type Option func(*Model)

// WithRuntimeConfig applies runtime settings at construction.
func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(m *Model) {
		m.applyRuntimeConfig(cfg)
	}
}

// WithReloadConfigCallback wires the config reload action.
func WithReloadConfigCallback(fn ReloadConfigFunc) Option {
	return func(m *Model) {
		m.reloadConfig = fn
	}
}

// WithClipboard replaces the clipboard writer.
func WithClipboard(fn CopyFunc) Option {
	return func(m *Model) {
		if fn != nil {
			m.copyText = fn
		}
	}
}

// WithInitialMode selects the starting tab.
func WithInitialMode(mode domain.Mode) Option {
	return func(m *Model) {
		if mode.Valid() {
			_ = m.svc.SwitchMode(mode)
		}
	}
}

// WithKeyConfig applies key overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}
