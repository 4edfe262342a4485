package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanup(t *testing.T) {
	t.Parallel()
	g := Default()

	tests := []struct {
		in, want string
	}{
		{"1", "1"},
		{"1.2.3", "1.2.3"},
		{"1.2.3.qualifier", "1.2.3.qualifier"},
		{"[1.0,2.0)", "[1.0,2.0)"},
		{"1.2-SNAPSHOT", "1.2.0.SNAPSHOT"},
		{"1-beta", "1.0.0.beta"},
		{"1.2.3_beta", "1.2.3.beta"},
		{"1.2.3-", "1.2.3"},
		{"1.2.3.4.5", "1.2.3.5"},
		{"  2.0  ", "2.0"},
		{"[1.0 , 2.0-SNAPSHOT)", "[1.0,2.0.0.SNAPSHOT)"},
		{"1.2.3.a+b", "1.2.3.ab"},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		got := g.Cleanup(tt.in)
		assert.Equal(t, tt.want, got, "Cleanup(%q)", tt.in)
		assert.Equal(t, got, g.Cleanup(got), "Cleanup must be idempotent for %q", tt.in)
	}
}

func TestValid(t *testing.T) {
	t.Parallel()
	g := Default()

	assert.True(t, g.Valid("1.0.0"))
	assert.True(t, g.Valid("1.0.0.v2024-01_a"))
	assert.False(t, g.Valid("1.0.0.a.b"))
	assert.False(t, g.Valid("[1,2)"))
	assert.True(t, g.ValidRange("[1,2)"))
	assert.True(t, g.ValidRange("(1.0,2.0]"))
	assert.True(t, g.ValidRange("1.5"))
	assert.False(t, g.ValidRange("[1,2"))
}

func TestRanges(t *testing.T) {
	t.Parallel()

	v, err := Parse("1.4.2.qual")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 4, Micro: 2, Qualifier: "qual"}, v)
	assert.Equal(t, "[1.4,2)", ConsumerRange(v))
	assert.Equal(t, "[1.4,1.5)", ProviderRange(v))

	v, err = Parse("3")
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", v.String())

	_, err = Parse("x.1")
	var mv *MalformedVersionError
	require.ErrorAs(t, err, &mv)
	assert.Equal(t, "x.1", mv.Version)
}
