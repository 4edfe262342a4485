// Package header parses and renders OSGi manifest header values: ordered
// clauses, each a name with attributes and directives.
package header

import (
	"strings"
)

// Attrs is an insertion-ordered attribute map. Directive keys end in ':'.
// Analysis stages hand each other clones rather than sharing one map.
type Attrs struct {
	keys   []string
	values map[string]string
}

func NewAttrs(kv ...string) *Attrs {
	a := &Attrs{values: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		a.Set(kv[i], kv[i+1])
	}
	return a
}

func (a *Attrs) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

func (a *Attrs) Get(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a.values[key]
	return v, ok
}

// Value returns the value for key or "".
func (a *Attrs) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

func (a *Attrs) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

func (a *Attrs) Set(key, value string) {
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

func (a *Attrs) Delete(key string) {
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i:i], a.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (a *Attrs) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

func (a *Attrs) Clone() *Attrs {
	c := &Attrs{values: make(map[string]string, a.Len())}
	if a == nil {
		return c
	}
	c.keys = append([]string(nil), a.keys...)
	for k, v := range a.values {
		c.values[k] = v
	}
	return c
}

// Merge copies every entry of other, overriding existing values.
func (a *Attrs) Merge(other *Attrs) {
	for _, k := range other.Keys() {
		a.Set(k, other.values[k])
	}
}

// MergeMissing copies the entries of other whose keys are absent.
func (a *Attrs) MergeMissing(other *Attrs) {
	for _, k := range other.Keys() {
		if !a.Has(k) {
			a.Set(k, other.values[k])
		}
	}
}

func (a *Attrs) Equal(other *Attrs) bool {
	if a.Len() != other.Len() {
		return false
	}
	for _, k := range a.Keys() {
		v, ok := other.Get(k)
		if !ok || v != a.values[k] {
			return false
		}
	}
	return true
}

// Map returns a copy of the entries.
func (a *Attrs) Map() map[string]string {
	m := make(map[string]string, a.Len())
	for _, k := range a.Keys() {
		m[k] = a.values[k]
	}
	return m
}

// String renders the attributes as they follow a clause name, skipping keys
// that start with '-'.
func (a *Attrs) String() string {
	var sb strings.Builder
	for _, k := range a.Keys() {
		if strings.HasPrefix(k, "-") {
			continue
		}
		sb.WriteByte(';')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(quote(a.values[k]))
	}
	return sb.String()
}

func quote(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

func IsDirective(key string) bool {
	return strings.HasSuffix(key, ":")
}
