// ABOUTME: Tests for the terminal navigator's route hints
// ABOUTME: Colors are disabled so the hints can be compared as plain text

package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/2389/kbchat/internal/auth"
)

func TestNavigator_Hints(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		path string
		want string
	}{
		{path: auth.LoginRedirect("/chat/a1"), want: "Sign in required. Run `kbchat login`, then return to /chat/a1\n"},
		{path: auth.PathLogin, want: "Signed out. Run `kbchat login` to sign in again.\n"},
		{path: auth.PathHome, want: "That page is not available to this account.\n"},
		{path: "/knowledge", want: "→ /knowledge\n"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var buf bytes.Buffer
			nav := NewNavigator(&buf)
			nav.Navigate(tt.path)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestNavigator_CountAndLast(t *testing.T) {
	var buf bytes.Buffer
	nav := NewNavigator(&buf)
	assert.Zero(t, nav.Count())
	assert.Empty(t, nav.Last())

	nav.Navigate("/knowledge")
	nav.Navigate(auth.PathHome)

	assert.Equal(t, 2, nav.Count())
	assert.Equal(t, auth.PathHome, nav.Last())
}
