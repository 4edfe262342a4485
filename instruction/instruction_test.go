package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/header"
	"github.com/dhamidi/bundlegen/packages"
)

func TestCompileMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		match   []string
		noMatch []string
	}{
		{"com.foo.*", []string{"com.foo", "com.foo.bar", "com.foo.bar.baz"}, []string{"com.foobar", "com"}},
		{"com.foo", []string{"com.foo"}, []string{"com.foo.bar", "comxfoo"}},
		{"*", []string{"a", "a.b.c", "."}, nil},
		{"com.*.impl", []string{"com.x.impl", "com.x.y.impl"}, []string{"com.impl", "com.x.impl2"}},
		{"org.v?", []string{"org.v1", "org.v2"}, []string{"org.v", "org.v10"}},
		{"a.b|c.d", []string{"a.b", "c.d"}, []string{"a.bc.d"}},
		{"Com.Foo.*:i", []string{"com.foo", "COM.FOO.BAR"}, []string{"com.fool"}},
		{"=com.foo.*", []string{"com.foo.*"}, []string{"com.foo", "com.foo.bar"}},
		{"x$y.*", []string{"x$y", "x$y.z"}, []string{"xy"}},
	}

	for _, tt := range tests {
		in, err := Compile(tt.pattern)
		require.NoError(t, err, tt.pattern)
		for _, m := range tt.match {
			assert.True(t, in.Matches(m), "%q should match %q", tt.pattern, m)
		}
		for _, m := range tt.noMatch {
			assert.False(t, in.Matches(m), "%q should not match %q", tt.pattern, m)
		}
	}
}

func TestCompileFlags(t *testing.T) {
	t.Parallel()

	neg := MustCompile("!com.foo.*")
	assert.True(t, neg.IsNegated())
	assert.True(t, neg.Matches("com.foo.bar"), "a negated instruction still matches")
	assert.False(t, neg.IsLiteral())

	lit := MustCompile("com.foo")
	assert.True(t, lit.IsLiteral())
	assert.Equal(t, "com.foo", lit.Literal())

	eq := MustCompile("=com.foo.*")
	assert.True(t, eq.IsLiteral())
	assert.Equal(t, "com.foo.*", eq.Literal())

	dup := MustCompile("com.foo~")
	assert.True(t, dup.IsDuplicate())
	assert.True(t, dup.Matches("com.foo"))
	assert.Equal(t, "com.foo~", dup.Input())

	assert.True(t, MustCompile("*").IsAny())
	assert.False(t, MustCompile("com.*").IsAny())

	_, err := Compile("")
	assert.Error(t, err)
	_, err = Compile("com.(foo*")
	assert.Error(t, err)
}

func TestInstructionsOptional(t *testing.T) {
	t.Parallel()

	ins, err := Parse("a.*;resolution:=optional, b.*")
	require.NoError(t, err)
	list := ins.List()
	require.Len(t, list, 2)
	assert.True(t, list[0].IsOptional())
	assert.False(t, list[1].IsOptional())
	assert.Equal(t, "optional", ins.Attrs(list[0]).Value("resolution:"))
}

func candidates(d *descriptors.Descriptors, names ...string) *packages.Packages {
	p := packages.New()
	for _, n := range names {
		p.Put(d.PackageRefFromFQN(n), header.NewAttrs("from", "source"))
	}
	return p
}

func fqns(p *packages.Packages) []string {
	var out []string
	for _, ref := range p.Keys() {
		out = append(out, ref.FQN())
	}
	return out
}

func TestSelectAndConsumeFirstMatchWins(t *testing.T) {
	t.Parallel()
	d := descriptors.New()

	ins, err := Parse("com.foo.impl;version=2, com.foo.*;version=1")
	require.NoError(t, err)
	sel := SelectAndConsume(d, ins, candidates(d, "com.foo", "com.foo.impl", "com.foo.api", "org.other"))

	assert.Equal(t, []string{"com.foo.impl", "com.foo", "com.foo.api"}, fqns(sel.Selected))
	impl, _ := sel.Selected.Get(d.PackageRefFromFQN("com.foo.impl"))
	assert.Equal(t, "2", impl.Value("version"))
	assert.Equal(t, "source", impl.Value("from"))
	api, _ := sel.Selected.Get(d.PackageRefFromFQN("com.foo.api"))
	assert.Equal(t, "1", api.Value("version"))
	assert.Empty(t, sel.Unmatched)
}

func TestSelectAndConsumeNegation(t *testing.T) {
	t.Parallel()
	d := descriptors.New()

	ins, err := Parse("!com.foo.internal.*, com.foo.*")
	require.NoError(t, err)
	sel := SelectAndConsume(d, ins, candidates(d, "com.foo", "com.foo.internal", "com.foo.internal.x"))

	assert.Equal(t, []string{"com.foo"}, fqns(sel.Selected))
}

func TestSelectAndConsumeUnmatched(t *testing.T) {
	t.Parallel()
	d := descriptors.New()

	ins, err := Parse("com.missing.*, !com.gone, opt.*;resolution:=optional, com.literal;version=3, *")
	require.NoError(t, err)
	sel := SelectAndConsume(d, ins, candidates(d, "com.present", "META-INF.maven"))

	require.Len(t, sel.Unmatched, 1)
	assert.Equal(t, "com.missing.*", sel.Unmatched[0].Input())

	require.Len(t, sel.Injected, 1)
	lit, ok := sel.Selected.Get(d.PackageRefFromFQN("com.literal"))
	require.True(t, ok)
	assert.Equal(t, "3", lit.Value("version"))

	assert.True(t, sel.Selected.Contains(d.PackageRefFromFQN("com.present")))
	assert.False(t, sel.Selected.Contains(d.PackageRef("META-INF/maven")))
}

func TestSelectAndConsumeDuplicates(t *testing.T) {
	t.Parallel()
	d := descriptors.New()

	ins, err := Parse("com.foo;version=1, com.foo;version=2")
	require.NoError(t, err)
	sel := SelectAndConsume(d, ins, candidates(d, "com.foo"))

	require.Equal(t, 2, sel.Selected.Len())
	keys := sel.Selected.Keys()
	assert.Same(t, d.PackageRefFromFQN("com.foo"), keys[0])
	assert.True(t, keys[1].IsDuplicate())
	second, _ := sel.Selected.Get(keys[1])
	assert.Equal(t, "2", second.Value("version"))
	assert.Equal(t, `com.foo;from="source";version="1",com.foo;version="2"`, sel.Selected.String())
}
