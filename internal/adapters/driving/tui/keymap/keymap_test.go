package keymap

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()

	require.NotNil(t, km)
}

func TestDefaultKeyMap_Bindings(t *testing.T) {
	km := DefaultKeyMap()

	tests := []struct {
		name    string
		binding key.Binding
		key     string
	}{
		{"quit", km.Quit, "ctrl+c"},
		{"help", km.Help, "f1"},
		{"back", km.Back, "esc"},
		{"submit", km.Submit, "enter"},
		{"up", km.Up, "up"},
		{"down", km.Down, "down"},
		{"clear", km.Clear, "ctrl+n"},
		{"switch view", km.SwitchView, "tab"},
		{"cycle mode", km.CycleMode, "ctrl+t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.binding.Keys(), tt.key)
			assert.NotEmpty(t, tt.binding.Help().Desc)
		})
	}
}

func TestDefaultKeyMap_NoPrintableKeys(t *testing.T) {
	km := DefaultKeyMap()
	for _, group := range km.FullHelp() {
		for _, b := range group {
			for _, k := range b.Keys() {
				assert.Greater(t, len(k), 1, "binding %q would swallow typed text", k)
			}
		}
	}
}

func TestKeyMap_ShortHelp(t *testing.T) {
	km := DefaultKeyMap()

	help := km.ShortHelp()

	require.Len(t, help, 5)
	assert.Equal(t, "submit", help[0].Help().Desc)
	assert.Equal(t, "quit", help[len(help)-1].Help().Desc)
}

func TestKeyMap_ResultsHelp(t *testing.T) {
	km := DefaultKeyMap()

	help := km.ResultsHelp()

	assert.NotEmpty(t, help)
	assert.Equal(t, "up", help[0].Help().Desc)
}

func TestKeyMap_FullHelp(t *testing.T) {
	km := DefaultKeyMap()

	groups := km.FullHelp()

	assert.Len(t, groups, 3)
	for _, g := range groups {
		assert.Len(t, g, 3)
	}
}

func TestMatches(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("enter", km.Submit))
	assert.True(t, Matches("tab", km.SwitchView))
	assert.False(t, Matches("q", km.Quit))
	assert.False(t, Matches("x", km.Help))
}
