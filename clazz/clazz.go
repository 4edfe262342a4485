// Package clazz extracts the structural facts of one compiled class that the
// bundle analyzer needs: identity, hierarchy, members, annotations and the set
// of packages the class refers to.
package clazz

import (
	"slices"

	"github.com/dhamidi/bundlegen/classfile"
	"github.com/dhamidi/bundlegen/descriptors"
)

type Clazz struct {
	Path         string
	ClassName    *descriptors.TypeRef
	SuperClass   *descriptors.TypeRef
	Interfaces   []*descriptors.TypeRef
	AccessFlags  classfile.AccessFlags
	MajorVersion uint16
	MinorVersion uint16
	SourceFile   string
	Signature    string
	Deprecated   bool
	Annotations  []Annotation
	Fields       []Member
	Methods      []Member
	InnerClasses []InnerClass
	Enclosing    *MethodRef

	// ForName holds the types found by crawling Class.forName calls.
	ForName []*descriptors.TypeRef
	Crawled bool

	referred map[*descriptors.PackageRef]struct{}
}

type Member struct {
	Name        string
	Descriptor  *descriptors.Descriptor
	AccessFlags classfile.AccessFlags
	Signature   string
	Deprecated  bool
	Constant    any
	Annotations []Annotation
}

type InnerClass struct {
	Inner       *descriptors.TypeRef
	Outer       *descriptors.TypeRef
	SimpleName  string
	AccessFlags classfile.AccessFlags
}

type MethodRef struct {
	Class      *descriptors.TypeRef
	Name       string
	Descriptor string
}

type Retention int

const (
	RetentionClass Retention = iota
	RetentionRuntime
)

func (r Retention) String() string {
	if r == RetentionRuntime {
		return "RUNTIME"
	}
	return "CLASS"
}

type Annotation struct {
	Type      *descriptors.TypeRef
	Retention Retention
	Elements  map[string]any
}

// Get returns an element value; nested annotations are Annotation, enum
// constants EnumValue, class literals *descriptors.TypeRef and arrays []any.
func (a Annotation) Get(name string) (any, bool) {
	v, ok := a.Elements[name]
	return v, ok
}

type EnumValue struct {
	Type *descriptors.TypeRef
	Name string
}

func (c *Clazz) Package() *descriptors.PackageRef { return c.ClassName.Package() }

func (c *Clazz) IsPublic() bool     { return c.AccessFlags.IsPublic() }
func (c *Clazz) IsInterface() bool  { return c.AccessFlags.IsInterface() }
func (c *Clazz) IsAnnotation() bool { return c.AccessFlags.IsAnnotation() }
func (c *Clazz) IsEnum() bool       { return c.AccessFlags.IsEnum() }
func (c *Clazz) IsModule() bool     { return c.AccessFlags.IsModule() }

func (c *Clazz) IsPackageInfo() bool {
	return c.ClassName.ShortName() == "package-info"
}

// Referred returns the referred packages ordered by name. The class's own
// package is never included.
func (c *Clazz) Referred() []*descriptors.PackageRef {
	refs := make([]*descriptors.PackageRef, 0, len(c.referred))
	for p := range c.referred {
		refs = append(refs, p)
	}
	slices.SortFunc(refs, (*descriptors.PackageRef).Compare)
	return refs
}

func (c *Clazz) RefersTo(p *descriptors.PackageRef) bool {
	_, ok := c.referred[p]
	return ok
}

// Annotation returns the first class-level annotation of the given binary type name.
func (c *Clazz) Annotation(binary string) (Annotation, bool) {
	for _, a := range c.Annotations {
		if a.Type.Binary() == binary {
			return a, true
		}
	}
	return Annotation{}, false
}

func (c *Clazz) String() string { return c.ClassName.FQN() }
