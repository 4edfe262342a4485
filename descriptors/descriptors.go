// Package descriptors interns type, package and method descriptor references so
// that equal binary names always share one identity.
package descriptors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DuplicateMarker is appended to a package name that occurs a second time in a
// header with different attributes.
const DuplicateMarker = "~"

var ErrMalformedDescriptor = errors.New("malformed descriptor")

var metaPackages = []string{"META-INF", "OSGI-INF", "OSGI-OPT"}

type PackageRef struct {
	binary    string
	fqn       string
	java      bool
	primitive bool
}

func newPackageRef(binary string) *PackageRef {
	p := &PackageRef{binary: binary}
	if binary == "" {
		p.fqn = "."
		return p
	}
	p.fqn = BinaryToFQN(binary)
	p.java = strings.HasPrefix(p.fqn, "java.")
	return p
}

func (p *PackageRef) Binary() string    { return p.binary }
func (p *PackageRef) FQN() string       { return p.fqn }
func (p *PackageRef) String() string    { return p.fqn }
func (p *PackageRef) IsJava() bool      { return p.java }
func (p *PackageRef) IsPrimitive() bool { return p.primitive }
func (p *PackageRef) IsDefault() bool   { return p.binary == "" && !p.primitive }

// Path is the directory of the package inside an archive.
func (p *PackageRef) Path() string { return p.binary }

// IsDuplicate reports whether the ref was created by Duplicate.
func (p *PackageRef) IsDuplicate() bool { return strings.HasSuffix(p.binary, DuplicateMarker) }

// Duplicate returns a fresh, un-interned ref with the duplicate marker appended.
// It never compares equal to the interned ref.
func (p *PackageRef) Duplicate() *PackageRef {
	return &PackageRef{
		binary: p.binary + DuplicateMarker,
		fqn:    p.fqn + DuplicateMarker,
		java:   p.java,
	}
}

// IsMetaData reports whether the package holds archive metadata rather than code.
func (p *PackageRef) IsMetaData() bool {
	for _, meta := range metaPackages {
		if p.binary == meta || strings.HasPrefix(p.binary, meta+"/") {
			return true
		}
	}
	return false
}

// Compare orders package refs by dotted name.
func (p *PackageRef) Compare(o *PackageRef) int {
	return strings.Compare(p.fqn, o.fqn)
}

type TypeRef struct {
	binary    string
	fqn       string
	pkg       *PackageRef
	primitive bool
	component *TypeRef
}

func (t *TypeRef) Binary() string {
	if t.component != nil {
		return "[" + t.component.descriptorForm()
	}
	return t.binary
}

func (t *TypeRef) FQN() string {
	if t.component != nil {
		return t.component.FQN() + "[]"
	}
	return t.fqn
}

func (t *TypeRef) String() string { return t.FQN() }

func (t *TypeRef) descriptorForm() string {
	if t.component != nil || t.primitive {
		return t.Binary()
	}
	return "L" + t.binary + ";"
}

func (t *TypeRef) IsPrimitive() bool   { return t.primitive }
func (t *TypeRef) IsArray() bool       { return t.component != nil }
func (t *TypeRef) Component() *TypeRef { return t.component }

// Element returns the innermost non-array type.
func (t *TypeRef) Element() *TypeRef {
	e := t
	for e.component != nil {
		e = e.component
	}
	return e
}

func (t *TypeRef) Package() *PackageRef {
	if t.component != nil {
		return t.component.Package()
	}
	return t.pkg
}

func (t *TypeRef) IsJava() bool {
	if t.primitive {
		return true
	}
	return t.Package().IsJava()
}

func (t *TypeRef) IsObject() bool { return t.binary == "java/lang/Object" }

func (t *TypeRef) Path() string {
	if t.component != nil {
		return t.component.Path()
	}
	return t.binary + ".class"
}

func (t *TypeRef) ShortName() string {
	fqn := t.FQN()
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}

var (
	primitivePackage = &PackageRef{binary: "", fqn: ".", primitive: true}

	Void    = primitive("V", "void")
	Boolean = primitive("Z", "boolean")
	Byte    = primitive("B", "byte")
	Char    = primitive("C", "char")
	Short   = primitive("S", "short")
	Int     = primitive("I", "int")
	Long    = primitive("J", "long")
	Double  = primitive("D", "double")
	Float   = primitive("F", "float")
)

func primitive(binary, fqn string) *TypeRef {
	return &TypeRef{binary: binary, fqn: fqn, pkg: primitivePackage, primitive: true}
}

func primitiveFor(c byte) *TypeRef {
	switch c {
	case 'V':
		return Void
	case 'Z':
		return Boolean
	case 'B':
		return Byte
	case 'C':
		return Char
	case 'S':
		return Short
	case 'I':
		return Int
	case 'J':
		return Long
	case 'D':
		return Double
	case 'F':
		return Float
	}
	return nil
}

type Descriptor struct {
	raw       string
	typ       *TypeRef
	prototype []*TypeRef
}

func (d *Descriptor) String() string { return d.raw }

// Type is the field type, or the return type of a method descriptor.
func (d *Descriptor) Type() *TypeRef { return d.typ }

// Prototype is the parameter list; nil for field descriptors.
func (d *Descriptor) Prototype() []*TypeRef { return d.prototype }

func (d *Descriptor) IsMethod() bool { return d.prototype != nil }

// Refs returns every type mentioned by the descriptor, return type last.
func (d *Descriptor) Refs() []*TypeRef {
	refs := make([]*TypeRef, 0, len(d.prototype)+1)
	refs = append(refs, d.prototype...)
	return append(refs, d.typ)
}

func (d *Descriptor) Equal(o *Descriptor) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil || d.typ != o.typ {
		return false
	}
	if (d.prototype == nil) != (o.prototype == nil) || len(d.prototype) != len(o.prototype) {
		return false
	}
	for i := range d.prototype {
		if d.prototype[i] != o.prototype[i] {
			return false
		}
	}
	return true
}

// Descriptors owns the interning tables. The zero value is not usable; call New.
type Descriptors struct {
	mu          sync.RWMutex
	types       map[string]*TypeRef
	packages    map[string]*PackageRef
	descriptors map[string]*Descriptor
	defaultPkg  *PackageRef
}

func New() *Descriptors {
	d := &Descriptors{
		types:       make(map[string]*TypeRef),
		packages:    make(map[string]*PackageRef),
		descriptors: make(map[string]*Descriptor),
		defaultPkg:  newPackageRef(""),
	}
	d.packages[""] = d.defaultPkg
	return d
}

// DefaultPackage returns the unnamed package.
func (d *Descriptors) DefaultPackage() *PackageRef { return d.defaultPkg }

// TypeRef interns a binary type name. Field-descriptor forms are accepted:
// "Ljava/lang/String;" yields the same ref as "java/lang/String", and
// "[I" yields an array of int.
func (d *Descriptors) TypeRef(binary string) *TypeRef {
	if len(binary) == 1 {
		if p := primitiveFor(binary[0]); p != nil {
			return p
		}
	}
	if len(binary) > 2 && binary[0] == 'L' && binary[len(binary)-1] == ';' {
		binary = binary[1 : len(binary)-1]
	}

	d.mu.RLock()
	ref, ok := d.types[binary]
	d.mu.RUnlock()
	if ok {
		return ref
	}

	if strings.HasPrefix(binary, "[") {
		component := d.TypeRef(binary[1:])
		ref = &TypeRef{component: component}
	} else {
		ref = &TypeRef{
			binary: binary,
			fqn:    BinaryToFQN(binary),
			pkg:    d.PackageRef(PackageOf(binary)),
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.types[binary]; ok {
		return existing
	}
	d.types[binary] = ref
	return ref
}

// TypeRefFromFQN interns a dotted class name. Nested class names must already use '$'.
func (d *Descriptors) TypeRefFromFQN(fqn string) *TypeRef {
	switch fqn {
	case "void":
		return Void
	case "boolean":
		return Boolean
	case "byte":
		return Byte
	case "char":
		return Char
	case "short":
		return Short
	case "int":
		return Int
	case "long":
		return Long
	case "double":
		return Double
	case "float":
		return Float
	}
	if strings.HasSuffix(fqn, "[]") {
		component := d.TypeRefFromFQN(strings.TrimSuffix(fqn, "[]"))
		return d.TypeRef("[" + component.descriptorForm())
	}
	return d.TypeRef(FQNToBinary(fqn))
}

// TypeRefFromPath interns the type stored at an archive path like "a/b/C.class".
func (d *Descriptors) TypeRefFromPath(path string) *TypeRef {
	return d.TypeRef(strings.TrimSuffix(path, ".class"))
}

// PackageRef interns a package by its binary (slash) form.
func (d *Descriptors) PackageRef(binary string) *PackageRef {
	binary = strings.TrimSuffix(binary, "/")
	d.mu.RLock()
	ref, ok := d.packages[binary]
	d.mu.RUnlock()
	if ok {
		return ref
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.packages[binary]; ok {
		return existing
	}
	ref = newPackageRef(binary)
	d.packages[binary] = ref
	return ref
}

// PackageRefFromFQN interns a package by its dotted name. "." is the default package.
func (d *Descriptors) PackageRefFromFQN(fqn string) *PackageRef {
	if fqn == "." || fqn == "" {
		return d.defaultPkg
	}
	return d.PackageRef(FQNToBinary(fqn))
}

// Descriptor parses and interns a field or method descriptor.
func (d *Descriptors) Descriptor(raw string) (*Descriptor, error) {
	d.mu.RLock()
	desc, ok := d.descriptors[raw]
	d.mu.RUnlock()
	if ok {
		return desc, nil
	}

	desc, err := d.parseDescriptor(raw)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.descriptors[raw]; ok {
		return existing, nil
	}
	d.descriptors[raw] = desc
	return desc, nil
}

func (d *Descriptors) parseDescriptor(raw string) (*Descriptor, error) {
	desc := &Descriptor{raw: raw}
	pos := 0
	if strings.HasPrefix(raw, "(") {
		pos = 1
		desc.prototype = []*TypeRef{}
		for pos < len(raw) && raw[pos] != ')' {
			ref, next, err := d.fieldType(raw, pos)
			if err != nil {
				return nil, err
			}
			desc.prototype = append(desc.prototype, ref)
			pos = next
		}
		if pos >= len(raw) {
			return nil, fmt.Errorf("%w: %q: missing ')'", ErrMalformedDescriptor, raw)
		}
		pos++
	}
	ref, next, err := d.fieldType(raw, pos)
	if err != nil {
		return nil, err
	}
	if next != len(raw) {
		return nil, fmt.Errorf("%w: %q: trailing data at %d", ErrMalformedDescriptor, raw, next)
	}
	desc.typ = ref
	return desc, nil
}

func (d *Descriptors) fieldType(raw string, pos int) (*TypeRef, int, error) {
	start := pos
	for pos < len(raw) && raw[pos] == '[' {
		pos++
	}
	if pos >= len(raw) {
		return nil, pos, fmt.Errorf("%w: %q: unexpected end at %d", ErrMalformedDescriptor, raw, pos)
	}
	switch c := raw[pos]; c {
	case 'L':
		end := strings.IndexByte(raw[pos:], ';')
		if end <= 1 {
			return nil, pos, fmt.Errorf("%w: %q: unterminated class name at %d", ErrMalformedDescriptor, raw, pos)
		}
		pos += end + 1
	default:
		if primitiveFor(c) == nil {
			return nil, pos, fmt.Errorf("%w: %q: unexpected %q at %d", ErrMalformedDescriptor, raw, c, pos)
		}
		if c == 'V' && pos != start {
			return nil, pos, fmt.Errorf("%w: %q: array of void", ErrMalformedDescriptor, raw)
		}
		pos++
	}
	return d.TypeRef(raw[start:pos]), pos, nil
}
