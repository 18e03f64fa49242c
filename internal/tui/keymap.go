package tui

import (
	"strings"
	"unicode"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	submit     key.Binding
	nextField  key.Binding
	prevField  key.Binding
	nextMode   key.Binding
	prevMode   key.Binding
	modeSingle key.Binding
	modeBatch  key.Binding
	modeFile   key.Binding
	copyOutput key.Binding
	reload     key.Binding
	toggleHelp key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
		submit:     key.NewBinding(key.WithKeys("ctrl+s", "enter"), key.WithHelp("enter/ctrl+s", "analyze")),
		nextField:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		prevField:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		nextMode:   key.NewBinding(key.WithKeys("ctrl+right"), key.WithHelp("ctrl+→", "next mode")),
		prevMode:   key.NewBinding(key.WithKeys("ctrl+left"), key.WithHelp("ctrl+←", "prev mode")),
		modeSingle: key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "single word")),
		modeBatch:  key.NewBinding(key.WithKeys("f2"), key.WithHelp("f2", "batch")),
		modeFile:   key.NewBinding(key.WithKeys("f3"), key.WithHelp("f3", "file upload")),
		copyOutput: key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy output")),
		reload:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload config")),
		toggleHelp: key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "toggle help")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.submit, k.nextField, k.nextMode, k.copyOutput, k.toggleHelp, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.submit, k.nextField, k.prevField, k.copyOutput, k.reload, k.toggleHelp, k.quit},
		{k.modeSingle, k.modeBatch, k.modeFile, k.nextMode, k.prevMode},
	}
}

// applyConfig applies configured key overrides; blank values keep the defaults.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.copyOutput, cfg.CopyOutput, "ctrl+y", "copy output")
	configureBinding(&k.reload, cfg.Reload, "ctrl+r", "reload config")
	configureBinding(&k.toggleHelp, cfg.ToggleHelp, "ctrl+g", "toggle help")
	configureBinding(&k.nextMode, cfg.NextMode, "ctrl+right", "next mode")
	configureBinding(&k.prevMode, cfg.PrevMode, "ctrl+left", "prev mode")
}

// configureBinding replaces one binding's keys and help text.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, helpKey := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(helpKey, desc)
}

// parseBindingKeys converts one configured key into matcher keys and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	if raw == " " {
		raw = "space"
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if strings.TrimSpace(fallback) == "" && fallback != " " {
			return nil, ""
		}
		return parseBindingKeys(fallback, "")
	}
	if strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	runes := []rune(raw)
	if len(runes) == 1 {
		r := runes[0]
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}
