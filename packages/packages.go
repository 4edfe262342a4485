// Package packages holds the ordered package-to-attributes maps the analyzer
// passes between its stages.
package packages

import (
	"slices"

	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/header"
)

// Packages maps package refs to attributes in insertion order. Duplicate refs
// (see descriptors.PackageRef.Duplicate) are distinct keys.
type Packages struct {
	keys []*descriptors.PackageRef
	m    map[*descriptors.PackageRef]*header.Attrs
}

func New() *Packages {
	return &Packages{m: make(map[*descriptors.PackageRef]*header.Attrs)}
}

func (p *Packages) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

func (p *Packages) Contains(ref *descriptors.PackageRef) bool {
	if p == nil {
		return false
	}
	_, ok := p.m[ref]
	return ok
}

func (p *Packages) Get(ref *descriptors.PackageRef) (*header.Attrs, bool) {
	if p == nil {
		return nil, false
	}
	a, ok := p.m[ref]
	return a, ok
}

// Put stores attrs for ref; a nil attrs is stored as an empty map.
func (p *Packages) Put(ref *descriptors.PackageRef, attrs *header.Attrs) {
	if attrs == nil {
		attrs = header.NewAttrs()
	}
	if _, ok := p.m[ref]; !ok {
		p.keys = append(p.keys, ref)
	}
	p.m[ref] = attrs
}

// PutIfAbsent stores attrs only when ref is not present yet.
func (p *Packages) PutIfAbsent(ref *descriptors.PackageRef, attrs *header.Attrs) bool {
	if p.Contains(ref) {
		return false
	}
	p.Put(ref, attrs)
	return true
}

func (p *Packages) Delete(ref *descriptors.PackageRef) {
	if !p.Contains(ref) {
		return
	}
	delete(p.m, ref)
	p.keys = slices.DeleteFunc(slices.Clone(p.keys), func(k *descriptors.PackageRef) bool { return k == ref })
}

// DeleteAll removes every key of other.
func (p *Packages) DeleteAll(other *Packages) {
	for _, ref := range other.Keys() {
		p.Delete(ref)
	}
}

// Keys returns the refs in insertion order.
func (p *Packages) Keys() []*descriptors.PackageRef {
	if p == nil {
		return nil
	}
	return slices.Clone(p.keys)
}

// Sorted returns the refs ordered by dotted name.
func (p *Packages) Sorted() []*descriptors.PackageRef {
	keys := p.Keys()
	slices.SortStableFunc(keys, (*descriptors.PackageRef).Compare)
	return keys
}

// Merge adds the attributes to ref, later maps overriding earlier ones. When
// unique is set and ref is already present, a duplicate ref is used instead.
func (p *Packages) Merge(ref *descriptors.PackageRef, unique bool, attrs ...*header.Attrs) *header.Attrs {
	if unique {
		for p.Contains(ref) {
			ref = ref.Duplicate()
		}
	}
	org, ok := p.Get(ref)
	if !ok {
		org = header.NewAttrs()
	}
	for _, a := range attrs {
		if a != nil {
			org.Merge(a)
		}
	}
	p.Put(ref, org)
	return org
}

// Clone copies the map and every attribute set.
func (p *Packages) Clone() *Packages {
	c := New()
	for _, ref := range p.Keys() {
		c.Put(ref, p.m[ref].Clone())
	}
	return c
}

// ByFQN finds a key by dotted name, duplicate markers included.
func (p *Packages) ByFQN(fqn string) *descriptors.PackageRef {
	for _, ref := range p.Keys() {
		if ref.FQN() == fqn {
			return ref
		}
	}
	return nil
}

// Parameters renders the map as header clauses, sorted by name.
func (p *Packages) Parameters() header.Parameters {
	var params header.Parameters
	for _, ref := range p.Sorted() {
		params.Add(ref.FQN(), p.m[ref])
	}
	return params
}

func (p *Packages) String() string {
	params := p.Parameters()
	return params.String()
}
