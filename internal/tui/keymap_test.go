package tui

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/key"
)

// TestParseBindingKeys verifies key parsing behavior for configured overrides.
func TestParseBindingKeys(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		fallback string
		keys     []string
		help     string
	}{
		{name: "space aliases", raw: "space", fallback: "ctrl+y", keys: []string{" ", "space"}, help: "space"},
		{name: "literal space", raw: " ", fallback: "x", keys: []string{" ", "space"}, help: "space"},
		{name: "uppercase rune includes shift alias", raw: "Y", fallback: "y", keys: []string{"Y", "shift+y"}, help: "Y"},
		{name: "multi rune lowercases key matcher", raw: "Ctrl+R", fallback: "r", keys: []string{"ctrl+r"}, help: "Ctrl+R"},
		{name: "blank uses fallback", raw: "", fallback: "ctrl+g", keys: []string{"ctrl+g"}, help: "ctrl+g"},
		{name: "blank without fallback", raw: " \t", fallback: "", keys: nil, help: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keys, help := parseBindingKeys(tc.raw, tc.fallback)
			if len(keys) != len(tc.keys) {
				t.Fatalf("keys = %#v, want %#v", keys, tc.keys)
			}
			for i := range keys {
				if keys[i] != tc.keys[i] {
					t.Fatalf("keys = %#v, want %#v", keys, tc.keys)
				}
			}
			if help != tc.help {
				t.Fatalf("help = %q, want %q", help, tc.help)
			}
		})
	}
}

// TestConfigureBinding verifies binding override application behavior.
func TestConfigureBinding(t *testing.T) {
	b := key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "old"))
	configureBinding(&b, "alt+c", "ctrl+y", "copy output")
	keys := b.Keys()
	if len(keys) != 1 || keys[0] != "alt+c" {
		t.Fatalf("unexpected configured keys %#v", keys)
	}
	if b.Help().Key != "alt+c" || b.Help().Desc != "copy output" {
		t.Fatalf("unexpected configured help %#v", b.Help())
	}
}

// TestModelKeyConfigOverridesHelpToggle verifies configured keys replace the defaults.
func TestModelKeyConfigOverridesHelpToggle(t *testing.T) {
	m, _ := newTestModel(&fakeAnalyzer{}, WithKeyConfig(KeyConfig{ToggleHelp: "ctrl+o"}))
	m, _ = applyMsg(t, m, tea.KeyPressMsg{Code: 'g', Mod: tea.ModCtrl})
	if m.help.ShowAll {
		t.Fatalf("default help key still toggles help after override")
	}
	m, _ = applyMsg(t, m, tea.KeyPressMsg{Code: 'o', Mod: tea.ModCtrl})
	if !m.help.ShowAll {
		t.Fatalf("configured help key did not toggle help")
	}
}
