package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskGlob(t *testing.T) {
	m, err := CompileMask("*!*@*.trusted.example")
	require.NoError(t, err)

	assert.True(t, m.Match("alice!~al@shell.trusted.example"))
	assert.False(t, m.Match("alice!~al@trusted.example.evil"))
	assert.False(t, m.Match("alice!~al@shell.TRUSTED.example"), "glob rules are case-sensitive")
}

func TestMaskGlobLiteralCharacters(t *testing.T) {
	m, err := CompileMask("bob!bob@10.0.0.?")
	require.NoError(t, err)

	assert.True(t, m.Match("bob!bob@10.0.0.7"))
	assert.False(t, m.Match("bob!bob@10x0x0x7"), "dots are literal")
	assert.False(t, m.Match("bob!bob@10.0.0.77"))
}

func TestMaskRegex(t *testing.T) {
	m, err := CompileMask(`/^(alice|bob)!~?\w+@.*\.example$/`)
	require.NoError(t, err)

	assert.True(t, m.Match("alice!~al@host.example"))
	assert.True(t, m.Match("bob!bob@a.b.example"))
	assert.False(t, m.Match("mallory!m@host.example"))
	assert.False(t, m.Match("Alice!~al@host.example"))
}

func TestMaskRegexFlags(t *testing.T) {
	m, err := CompileMask(`/^alice!/i`)
	require.NoError(t, err)
	assert.True(t, m.Match("ALICE!x@y"))

	_, err = CompileMask(`/^alice!/q`)
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestMaskAlternateDelimiter(t *testing.T) {
	m, err := CompileMask(`#^carol!.*@home$#`)
	require.NoError(t, err)
	assert.True(t, m.Match("carol!c@home"))

	// Characters outside the delimiter set make the rule a plain glob.
	m, err = CompileMask(`+carol+`)
	require.NoError(t, err)
	assert.True(t, m.Match("+carol+"))
	assert.False(t, m.Match("carol"))
}

func TestMaskInvalid(t *testing.T) {
	_, err := CompileMask("")
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = CompileMask("/(unclosed/")
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestNilMaskNeverMatches(t *testing.T) {
	var m *Mask
	assert.False(t, m.Match("anyone!a@b"))
	assert.Equal(t, "", m.String())
}
