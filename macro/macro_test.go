package macro

import (
	"testing"

	"github.com/magiconair/properties"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessKeys(t *testing.T) {
	t.Parallel()

	p := properties.MustLoadString("name=world\ngreeting=hello ${name}\n")
	r := New(p)

	got, err := r.Process("${greeting}!")
	require.NoError(t, err)
	assert.Equal(t, "hello world!", got)

	got, err = r.Process("${missing} stays")
	require.NoError(t, err)
	assert.Equal(t, "${missing} stays", got)

	got, err = r.Process("unterminated ${name")
	require.NoError(t, err)
	assert.Equal(t, "unterminated ${name", got)
}

func TestProcessRecursion(t *testing.T) {
	t.Parallel()

	p := properties.NewProperties()
	p.DisableExpansion = true
	p.Set("a", "${b}")
	p.Set("b", "${a}")

	_, err := New(p).Process("${a}")
	assert.ErrorIs(t, err, ErrRecursion)
}

func TestBind(t *testing.T) {
	t.Parallel()

	base := New(properties.MustLoadString("prefix=pkg"))
	bound := Bind(base, "@package", "com.foo", "@uses", "a,b")

	got, err := bound.Process("${prefix}:${@package};uses=${@uses}")
	require.NoError(t, err)
	assert.Equal(t, "pkg:com.foo;uses=a,b", got)

	// the parent does not see bound keys
	got, err = base.Process("${@package}")
	require.NoError(t, err)
	assert.Equal(t, "${@package}", got)
}

func TestVersionFunctions(t *testing.T) {
	t.Parallel()

	r := Bind(New(nil), "@", "1.4.2")
	tests := map[string]string{
		"${version;==}":                         "1.4",
		"${version;+}":                          "2",
		"${version;=+;2.7.1}":                   "2.8",
		"${version;=-0}":                        "1.3.0",
		"${range;[==,+)}":                       "[1.4,2)",
		"${range;[==,=+)}":                      "[1.4,1.5)",
		"[${version;==;${@}},${version;+;${@}})": "[1.4,2)",
		"${range;[===,==+];1.2-SNAPSHOT}":       "[1.2.0,1.2.1]",
	}
	for in, want := range tests {
		got, err := r.Process(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := r.Process("${range;==}")
	assert.Error(t, err)
	_, err = r.Process("${version;=x}")
	assert.Error(t, err)
}
