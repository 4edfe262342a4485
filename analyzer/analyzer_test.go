package analyzer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/bundlegen/clazz"
	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/internal/classtest"
	"github.com/dhamidi/bundlegen/jar"
)

// class builds a class with one private field per field type.
func class(name, super string, fieldTypes ...string) *fstest.MapFile {
	b := classtest.New(name)
	if super != "" {
		b.Super(super)
	}
	for i, ft := range fieldTypes {
		b.Field(classtest.AccPrivate, fmt.Sprintf("f%d", i), ft)
	}
	return &fstest.MapFile{Data: b.Bytes()}
}

func newJar(t *testing.T, name string, files fstest.MapFS) *jar.Jar {
	t.Helper()
	j, err := jar.New(name, files)
	require.NoError(t, err)
	return j
}

func analyze(t *testing.T, files fstest.MapFS, cfg Config, opts ...Option) (*Analyzer, error) {
	t.Helper()
	a := New(descriptors.New(), newJar(t, "bundle", files), cfg, opts...)
	return a, a.Analyze(context.Background())
}

func fqns(refs []*descriptors.PackageRef) []string {
	out := []string{}
	for _, r := range refs {
		if !r.IsJava() {
			out = append(out, r.FQN())
		}
	}
	return out
}

func pkg(a *Analyzer, fqn string) *descriptors.PackageRef {
	return a.d.PackageRefFromFQN(fqn)
}

func TestAnalyzeThreePackages(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"a/A.class": class("a/A", ""),
		"b/B.class": class("b/B", "a/A"),
		"c/C.class": class("c/C", "", "Lb/B;"),
	}, Config{ExportPackage: "a,b,c"})
	require.NoError(t, err)
	assert.Equal(t, Done, a.State())

	assert.Equal(t, []string{"a", "b", "c"}, fqns(a.Exports().Sorted()))
	assert.Equal(t, []string{"a"}, fqns(a.Uses().Get(pkg(a, "b"))))
	assert.Equal(t, []string{"b"}, fqns(a.Uses().Get(pkg(a, "c"))))

	attrsA, _ := a.Exports().Get(pkg(a, "a"))
	assert.False(t, attrsA.Has(UsesDirective))
	attrsB, _ := a.Exports().Get(pkg(a, "b"))
	assert.Equal(t, "a", attrsB.Value(UsesDirective))
	attrsC, _ := a.Exports().Get(pkg(a, "c"))
	assert.Equal(t, "b", attrsC.Value(UsesDirective))

	assert.Equal(t, 0, a.Imports().Len(), "java packages are never imported")
	for _, ref := range a.Referred().Keys() {
		assert.False(t, a.Contained().Contains(ref), "%s is both contained and referred", ref)
	}
	assert.Empty(t, a.Unreachable())
	assert.Empty(t, a.Errors())
}

func TestAnalyzeIsMemoized(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{"a/A.class": class("a/A", "")}, Config{ExportPackage: "a"})
	require.NoError(t, err)
	exports := a.Exports()

	require.NoError(t, a.Analyze(context.Background()))
	assert.Same(t, exports, a.Exports())
}

func TestNoImportDirective(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"p/P.class": class("p/P", ""),
		"q/Q.class": class("q/Q", "", "Lp/P;"),
	}

	a, err := analyze(t, files, Config{ExportPackage: "!q,*"})
	require.NoError(t, err)
	assert.True(t, a.Exports().Contains(pkg(a, "p")))
	assert.True(t, a.Imports().Contains(pkg(a, "p")), "an export used privately is imported too")

	a, err = analyze(t, files, Config{ExportPackage: "!q,*;-noimport:=true"})
	require.NoError(t, err)
	assert.True(t, a.Exports().Contains(pkg(a, "p")))
	assert.False(t, a.Imports().Contains(pkg(a, "p")))
	assert.NotContains(t, a.Exports().String(), "noimport")
}

func TestExportUsingPrivatePackageIsNotImported(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"api/Api.class":   class("api/Api", "", "Limpl/Impl;"),
		"impl/Impl.class": class("impl/Impl", "", "Lapi/Api;"),
	}, Config{ExportPackage: "api"})
	require.NoError(t, err)

	assert.False(t, a.Imports().Contains(pkg(a, "api")))
	assert.Equal(t, []string{"impl"}, fqns(a.Privates().Sorted()))
	require.NotEmpty(t, a.Warnings())
	assert.Contains(t, a.Warnings()[len(a.Warnings())-1].Error(), "private references: impl")
}

func TestTruncatedClassIsRecoverable(t *testing.T) {
	t.Parallel()

	truncated := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0, 0, 52, 0, 10, 1}
	files := fstest.MapFS{
		"a/A.class":   class("a/A", ""),
		"a/Bad.class": {Data: truncated},
	}

	a, err := analyze(t, files, Config{ExportPackage: "a"})
	require.NoError(t, err)
	assert.True(t, a.Exports().Contains(pkg(a, "a")))
	require.Len(t, a.Errors(), 1)

	var ce *ClassError
	require.ErrorAs(t, a.Errors()[0], &ce)
	assert.Equal(t, "bundle!/a/Bad.class", ce.Path)
	assert.ErrorIs(t, ce, ErrInvalidClassFile)

	_, err = analyze(t, files, Config{ExportPackage: "a", Pedantic: true})
	assert.ErrorIs(t, err, ErrInvalidClassFile)
}

func TestDefaultPackageReference(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"x/X.class": class("x/X", "", "LFoo;"),
	}, Config{ExportPackage: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefaultPackage)

	var dp *DefaultPackageError
	require.ErrorAs(t, err, &dp)
	assert.Equal(t, []string{"x.X"}, dp.Classes)
	assert.False(t, a.Referred().Contains(a.d.DefaultPackage()))
}

func TestDefaultPackageIsNotExported(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"Main.class": class("Main", ""),
		"a/A.class":  class("a/A", ""),
	}, Config{ExportPackage: "*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, fqns(a.Exports().Sorted()))
	assert.True(t, a.Contained().Contains(a.d.DefaultPackage()))
}

func TestUnreachable(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"a/A.class":     class("a/A", "", "Lc/C;"),
		"b/B.class":     class("b/B", "", "Ld/D;"),
		"c/C.class":     class("c/C", ""),
		"d/D.class":     class("d/D", ""),
		"act/Act.class": class("act/Act", "", "Lb/B;"),
	}

	a, err := analyze(t, files, Config{ExportPackage: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"act", "b", "d"}, fqns(a.Unreachable()))

	a, err = analyze(t, files, Config{ExportPackage: "a", BundleActivator: "act.Act"})
	require.NoError(t, err)
	assert.Empty(t, a.Unreachable())
	assert.Equal(t, "act.Act", a.Activator().FQN())
}

func TestUsesTemplates(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"a/A.class": class("a/A", "", "Lb/B;"),
		"b/B.class": class("b/B", "", "La/A;"),
		"c/C.class": class("c/C", ""),
	}, Config{ExportPackage: `a;uses:="<<USES>>,extra.pkg", b;uses:="${@uses},x", c;uses:="<<USES>>"`})
	require.NoError(t, err)

	attrs, _ := a.Exports().Get(pkg(a, "a"))
	assert.Equal(t, "b,extra.pkg", attrs.Value(UsesDirective))
	attrs, _ = a.Exports().Get(pkg(a, "b"))
	assert.Equal(t, "a,x", attrs.Value(UsesDirective))
	attrs, _ = a.Exports().Get(pkg(a, "c"))
	assert.False(t, attrs.Has(UsesDirective))
}

func TestNoUses(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"a/A.class": class("a/A", "", "Lb/B;"),
		"b/B.class": class("b/B", ""),
	}, Config{ExportPackage: "a,b", NoUses: true})
	require.NoError(t, err)
	assert.Equal(t, "a,b", a.Exports().String())
}

func TestPackageInfo(t *testing.T) {
	t.Parallel()

	info := classtest.New("v/package-info").Access(classtest.AccInterface | classtest.AccAbstract | classtest.AccSynthetic)
	info.Attribute(info.Annotations(false, classtest.Annotation{
		Type:     "Lorg/osgi/annotation/versioning/Version;",
		Elements: []classtest.Element{{Name: "value", Tag: 's', String: "2.1.0"}},
	}))

	a, err := analyze(t, fstest.MapFS{
		"v/package-info.class": {Data: info.Bytes()},
		"v/V.class":            class("v/V", ""),
		"p/P.class":            class("p/P", ""),
		"p/packageinfo":        {Data: []byte("version 1.2-SNAPSHOT\n")},
	}, Config{ExportPackage: "v,p"})
	require.NoError(t, err)

	assert.Equal(t, `p;version="1.2.0.SNAPSHOT",v;version="2.1.0"`, a.Exports().String())
}

func TestMalformedVersion(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"a/A.class": class("a/A", ""),
	}, Config{ExportPackage: "a;version=abc"})
	require.NoError(t, err)

	attrs, _ := a.Exports().Get(pkg(a, "a"))
	assert.Equal(t, "abc", attrs.Value(VersionAttribute))
	var mv *MalformedVersionError
	require.Len(t, a.Warnings(), 1)
	require.ErrorAs(t, a.Warnings()[0], &mv)
	assert.Equal(t, "a", mv.Package)
}

func TestRemoveAttributes(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"a/A.class": class("a/A", ""),
	}, Config{ExportPackage: `a;version=1;foo=!;bar=baz;qux=1;-remove-attribute:="bar,q*"`})
	require.NoError(t, err)
	assert.Equal(t, `a;version="1"`, a.Exports().String())
}

func TestMacroAttributes(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"a/A.class": class("a/A", ""),
	}, Config{ExportPackage: `a;origin="${@package}"`})
	require.NoError(t, err)
	assert.Equal(t, `a;origin="a"`, a.Exports().String())
}

func TestUnmatchedInstructions(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"a/A.class": class("a/A", "")}

	a, err := analyze(t, files, Config{ExportPackage: "a, nothing.*"})
	require.NoError(t, err)
	var ue *UnmatchedError
	require.Len(t, a.Warnings(), 1)
	require.ErrorAs(t, a.Warnings()[0], &ue)
	assert.Equal(t, "Export-Package", ue.Header)
	assert.Equal(t, "nothing.*", ue.Instruction)

	_, err = analyze(t, files, Config{ExportPackage: "a, nothing.*", Pedantic: true})
	require.ErrorAs(t, err, &ue)
}

func TestPathMismatch(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"wrong/A.class": class("a/A", ""),
	}, Config{})
	require.NoError(t, err)
	require.Len(t, a.Errors(), 1)
	var pm *PathMismatchError
	require.ErrorAs(t, a.Errors()[0], &pm)
	assert.Equal(t, "a.A", pm.ClassName)
	assert.Empty(t, a.Classes())
}

func TestDynamicImports(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"a/A.class": class("a/A", "", "Ldyn/x/D;", "Lstat/S;"),
	}, Config{DynamicImportPackage: "dyn.*"})
	require.NoError(t, err)
	assert.Equal(t, "stat", a.Imports().String())
}

func TestPrivatePackage(t *testing.T) {
	t.Parallel()

	a, err := analyze(t, fstest.MapFS{
		"a/A.class":   class("a/A", ""),
		"b/B.class":   class("b/B", ""),
		"b/x/X.class": class("b/x/X", ""),
	}, Config{ExportPackage: "a", PrivatePackage: "b.*,gone"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "b.x"}, fqns(a.Privates().Sorted()))
	require.Len(t, a.Warnings(), 1)
	assert.Contains(t, a.Warnings()[0].Error(), "gone")
}

func manifestJar(t *testing.T, manifest string, extra fstest.MapFS) *jar.Jar {
	t.Helper()
	files := fstest.MapFS{"META-INF/MANIFEST.MF": {Data: []byte(manifest)}}
	for k, v := range extra {
		files[k] = v
	}
	return newJar(t, "lib.jar", files)
}

func TestImportVersionPolicy(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"x/X.class": class("x/X", "", "Llib/L;")}
	lib := manifestJar(t, "Export-Package: lib;version=1.4.2\n", nil)

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"consumer", Config{}, `lib;version="[1.4,2)"`},
		{"provider", Config{ImportPackage: "lib;provide:=true,*"}, `lib;version="[1.4,1.5)"`},
		{"policy", Config{VersionPolicy: "${range;[=,+)}"}, `lib;version="[1,2)"`},
		{"explicit", Config{ImportPackage: `lib;version="[${@},3)"`}, `lib;version="[1.4.2,3)"`},
		{"fuzzy", Config{ImportPackage: `lib;version="[1.0 , 2.0-beta)"`}, `lib;version="[1.0,2.0.0.beta)"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := analyze(t, files, tt.cfg, WithClasspath(lib))
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Imports().String())
		})
	}
}

func TestMandatoryAndImportDirective(t *testing.T) {
	t.Parallel()

	lib := manifestJar(t, "Export-Package: lib;specification-version=1.0;company=acme;mandatory:=company;-import:=extra\n", nil)
	a, err := analyze(t, fstest.MapFS{
		"x/X.class": class("x/X", "", "Llib/L;"),
	}, Config{}, WithClasspath(lib))
	require.NoError(t, err)

	attrs, ok := a.Imports().Get(pkg(a, "lib"))
	require.True(t, ok)
	assert.Equal(t, "[1.0,2)", attrs.Value(VersionAttribute))
	assert.Equal(t, "acme", attrs.Value("company"))
	assert.Equal(t, "extra", attrs.Value(ImportDirective))
}

func TestProviderTypeOnClasspath(t *testing.T) {
	t.Parallel()

	svc := classtest.New("lib/Service").Access(classtest.AccPublic | classtest.AccInterface | classtest.AccAbstract)
	svc.Attribute(svc.Annotations(false, classtest.Annotation{Type: "Lorg/osgi/annotation/versioning/ProviderType;"}))
	lib := manifestJar(t, "Export-Package: lib;version=1.4.2\n", fstest.MapFS{
		"lib/Service.class": {Data: svc.Bytes()},
	})

	impl := classtest.New("x/Impl").Implements("lib/Service")
	a, err := analyze(t, fstest.MapFS{
		"x/Impl.class": {Data: impl.Bytes()},
	}, Config{}, WithClasspath(lib))
	require.NoError(t, err)
	assert.Equal(t, `lib;version="[1.4,1.5)"`, a.Imports().String())

	c, err := a.FindClass(a.d.TypeRef("lib/Service"))
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.IsInterface())
}

func TestClasspathPackageInfo(t *testing.T) {
	t.Parallel()

	lib := newJar(t, "plain.jar", fstest.MapFS{
		"lib/L.class":     class("lib/L", ""),
		"lib/packageinfo": {Data: []byte("version 3.1\n")},
	})
	a, err := analyze(t, fstest.MapFS{
		"x/X.class": class("x/X", "", "Llib/L;"),
	}, Config{}, WithClasspath(lib))
	require.NoError(t, err)
	assert.Equal(t, `lib;version="[3.1,4)"`, a.Imports().String())
	assert.True(t, a.ClasspathExports().Contains(pkg(a, "lib")))
}

func TestBundleClassPath(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("inner/I.class")
	require.NoError(t, err)
	_, err = w.Write(class("inner/I", "").Data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	a, err := analyze(t, fstest.MapFS{
		"a/A.class":         class("a/A", ""),
		"lib/inner.jar":     {Data: buf.Bytes()},
		"classes/c/C.class": class("c/C", ""),
	}, Config{BundleClassPath: ".,lib/inner.jar,classes,missing.jar,opt.jar;resolution:=optional"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "inner"}, fqns(a.Contained().Sorted()))
	require.Len(t, a.Warnings(), 2)
	assert.Contains(t, a.Warnings()[0].Error(), "classes")
	assert.Contains(t, a.Warnings()[1].Error(), "missing.jar")
}

func TestParallelScanIsDeterministic(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{}
	for i := 0; i < 40; i++ {
		var fields []string
		if i > 0 {
			fields = append(fields, fmt.Sprintf("Lp%d/C;", i-1))
		}
		files[fmt.Sprintf("p%d/C.class", i)] = class(fmt.Sprintf("p%d/C", i), "", fields...)
	}

	serial, err := analyze(t, files, Config{ExportPackage: "*", Parallelism: 1})
	require.NoError(t, err)
	parallel, err := analyze(t, files, Config{ExportPackage: "*", Parallelism: 8})
	require.NoError(t, err)

	assert.Equal(t, serial.Exports().String(), parallel.Exports().String())
	assert.Equal(t, fqns(serial.Uses().Keys()), fqns(parallel.Uses().Keys()))
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := New(descriptors.New(), newJar(t, "bundle", fstest.MapFS{
		"a/A.class": class("a/A", ""),
	}), Config{})
	err := a.Analyze(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Done, a.State())
}

type countingCollector struct {
	clazz.BaseCollector
	begun []string
}

func (c *countingCollector) ClassBegin(cl *clazz.Clazz) {
	c.begun = append(c.begun, cl.Path)
}

func TestCollector(t *testing.T) {
	t.Parallel()

	col := &countingCollector{}
	_, err := analyze(t, fstest.MapFS{
		"a/A.class": class("a/A", ""),
		"b/B.class": class("b/B", ""),
	}, Config{}, WithCollector(col))
	require.NoError(t, err)
	assert.Equal(t, []string{"a/A.class", "b/B.class"}, col.begun)
}
