package clazz

import "github.com/dhamidi/bundlegen/descriptors"

// Collector receives the facts of a class as they are parsed. Setting one
// also turns on bytecode crawling in CrawlAuto mode.
type Collector interface {
	ClassBegin(c *Clazz)
	Extends(super *descriptors.TypeRef)
	Implements(interfaces []*descriptors.TypeRef)
	Field(m Member)
	Method(m Member)
	Annotation(a Annotation)
	Reference(t *descriptors.TypeRef)
	ClassForName(t *descriptors.TypeRef)
	InnerClass(ic InnerClass)
	EnclosingMethod(m MethodRef)
	ClassEnd(c *Clazz)
}

// BaseCollector implements Collector with no-ops; embed it and override what you need.
type BaseCollector struct{}

func (BaseCollector) ClassBegin(*Clazz)                 {}
func (BaseCollector) Extends(*descriptors.TypeRef)      {}
func (BaseCollector) Implements([]*descriptors.TypeRef) {}
func (BaseCollector) Field(Member)                      {}
func (BaseCollector) Method(Member)                     {}
func (BaseCollector) Annotation(Annotation)             {}
func (BaseCollector) Reference(*descriptors.TypeRef)    {}
func (BaseCollector) ClassForName(*descriptors.TypeRef) {}
func (BaseCollector) InnerClass(InnerClass)             {}
func (BaseCollector) EnclosingMethod(MethodRef)         {}
func (BaseCollector) ClassEnd(*Clazz)                   {}

var _ Collector = BaseCollector{}
