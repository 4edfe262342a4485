package descriptors

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeRefIdentity(t *testing.T) {
	t.Parallel()
	d := New()

	for _, name := range []string{"java/lang/String", "a/b/C$Inner", "Foo", "[I", "[[Lcom/x/Y;"} {
		first := d.TypeRef(name)
		assert.Same(t, first, d.TypeRef(name), name)
		assert.Equal(t, name, first.Binary(), name)
	}

	assert.Same(t, d.TypeRef("java/lang/String"), d.TypeRef("Ljava/lang/String;"))
	assert.Same(t, d.TypeRef("java/lang/String"), d.TypeRefFromFQN("java.lang.String"))
	assert.Same(t, d.TypeRef("a/b/C"), d.TypeRefFromPath("a/b/C.class"))
}

func TestTypeRefNames(t *testing.T) {
	t.Parallel()
	d := New()

	ref := d.TypeRef("com/acme/Widget")
	assert.Equal(t, "com.acme.Widget", ref.FQN())
	assert.Equal(t, "com/acme/Widget.class", ref.Path())
	assert.Equal(t, "Widget", ref.ShortName())
	assert.Same(t, d.PackageRef("com/acme"), ref.Package())
	assert.False(t, ref.IsJava())
	assert.True(t, d.TypeRef("java/util/List").IsJava())

	arr := d.TypeRef("[[Lcom/acme/Widget;")
	require.True(t, arr.IsArray())
	assert.Equal(t, "com.acme.Widget[][]", arr.FQN())
	assert.Same(t, ref, arr.Element())
	assert.Same(t, ref.Package(), arr.Package())
	assert.Same(t, d.TypeRef("[Lcom/acme/Widget;"), arr.Component())
	assert.Same(t, arr, d.TypeRefFromFQN("com.acme.Widget[][]"))
}

func TestPrimitives(t *testing.T) {
	t.Parallel()
	d := New()

	for _, c := range []string{"V", "Z", "B", "C", "S", "I", "J", "D", "F"} {
		ref := d.TypeRef(c)
		assert.True(t, ref.IsPrimitive(), c)
		assert.True(t, ref.Package().IsPrimitive(), c)
		assert.False(t, ref.Package().IsDefault(), c)
	}
	assert.Same(t, Int, d.TypeRefFromFQN("int"))
	assert.Equal(t, "int[]", d.TypeRef("[I").FQN())

	// a single-letter class in the default package is not a primitive
	assert.False(t, d.TypeRef("Bar").IsPrimitive())
}

func TestPackageRef(t *testing.T) {
	t.Parallel()
	d := New()

	def := d.DefaultPackage()
	assert.True(t, def.IsDefault())
	assert.Equal(t, ".", def.FQN())
	assert.Same(t, def, d.PackageRef(""))
	assert.Same(t, def, d.PackageRefFromFQN("."))
	assert.Same(t, def, d.TypeRef("Foo").Package())

	assert.True(t, d.PackageRefFromFQN("java.lang").IsJava())
	assert.False(t, d.PackageRefFromFQN("javax.swing").IsJava())

	assert.True(t, d.PackageRef("META-INF").IsMetaData())
	assert.True(t, d.PackageRef("OSGI-INF/blueprint").IsMetaData())
	assert.False(t, d.PackageRef("META-INFO").IsMetaData())

	pkg := d.PackageRefFromFQN("com.acme")
	dup := pkg.Duplicate()
	assert.NotSame(t, pkg, dup)
	assert.True(t, dup.IsDuplicate())
	assert.Equal(t, "com.acme~", dup.FQN())
	assert.Equal(t, "com.acme", StripDuplicateMarker(dup.FQN()))
}

func TestDescriptor(t *testing.T) {
	t.Parallel()
	d := New()

	field, err := d.Descriptor("Ljava/util/Map;")
	require.NoError(t, err)
	assert.Nil(t, field.Prototype())
	assert.False(t, field.IsMethod())
	assert.Same(t, d.TypeRef("java/util/Map"), field.Type())

	method, err := d.Descriptor("(I[Ljava/lang/String;J)Lcom/acme/Widget;")
	require.NoError(t, err)
	require.Len(t, method.Prototype(), 3)
	assert.Same(t, Int, method.Prototype()[0])
	assert.Same(t, d.TypeRef("[Ljava/lang/String;"), method.Prototype()[1])
	assert.Same(t, Long, method.Prototype()[2])
	assert.Same(t, d.TypeRef("com/acme/Widget"), method.Type())

	again, err := d.Descriptor("(I[Ljava/lang/String;J)Lcom/acme/Widget;")
	require.NoError(t, err)
	assert.Same(t, method, again)
	assert.True(t, method.Equal(again))

	noArgs, err := d.Descriptor("()V")
	require.NoError(t, err)
	assert.NotNil(t, noArgs.Prototype())
	assert.Empty(t, noArgs.Prototype())
	assert.False(t, noArgs.Equal(field))
}

func TestArrayDescriptorComponent(t *testing.T) {
	t.Parallel()
	d := New()

	for _, raw := range []string{"I", "Ljava/lang/Object;", "[J", "[[La/B;"} {
		elem, err := d.Descriptor(raw)
		require.NoError(t, err, raw)
		arr, err := d.Descriptor("[" + raw)
		require.NoError(t, err, raw)
		assert.Same(t, elem.Type(), arr.Type().Component(), raw)
	}
}

func TestMalformedDescriptor(t *testing.T) {
	t.Parallel()
	d := New()

	for _, raw := range []string{"", "[", "(I", "Ljava/lang/String", "(I)", "Q", "IJ", "[V", "(L;)V"} {
		_, err := d.Descriptor(raw)
		assert.ErrorIs(t, err, ErrMalformedDescriptor, "%q", raw)
	}
}

func TestConcurrentInterning(t *testing.T) {
	t.Parallel()
	d := New()

	const workers = 8
	refs := make([]*TypeRef, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refs[i] = d.TypeRef("org/example/Shared")
		}()
	}
	wg.Wait()

	for _, ref := range refs {
		assert.Same(t, refs[0], ref)
	}
}
