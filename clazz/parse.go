package clazz

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/bundlegen/classfile"
	"github.com/dhamidi/bundlegen/descriptors"
)

var log = commonlog.GetLogger("bundlegen.clazz")

var ErrInvalidClassFile = classfile.ErrInvalidClassFile

type CrawlMode int

const (
	// CrawlAuto crawls when a collector is set, when the class has a synthetic
	// class$ field, or when it was compiled for MaxCrawlMajor or older and
	// calls Class.forName.
	CrawlAuto CrawlMode = iota
	CrawlAlways
	CrawlNever
)

func (m CrawlMode) String() string {
	switch m {
	case CrawlAlways:
		return "always"
	case CrawlNever:
		return "never"
	}
	return "auto"
}

// ParseCrawlMode accepts "auto", "always" and "never".
func ParseCrawlMode(s string) (CrawlMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return CrawlAuto, nil
	case "always":
		return CrawlAlways, nil
	case "never":
		return CrawlNever, nil
	}
	return CrawlAuto, fmt.Errorf("unknown crawl mode %q", s)
}

// DefaultMaxCrawlMajor is Java 1.4, the last release whose compilers emitted
// the class$ helper for class literals.
const DefaultMaxCrawlMajor = 48

const (
	classForNameDescriptor = "(Ljava/lang/String;)Ljava/lang/Class;"
	classDollar            = "class$"
)

type options struct {
	collector     Collector
	crawl         CrawlMode
	maxCrawlMajor uint16
}

type Option func(*options)

func WithCollector(c Collector) Option {
	return func(o *options) { o.collector = c }
}

func WithCrawl(mode CrawlMode) Option {
	return func(o *options) { o.crawl = mode }
}

func WithMaxCrawlMajor(major uint16) Option {
	return func(o *options) { o.maxCrawlMajor = major }
}

func ParseBytes(d *descriptors.Descriptors, path string, data []byte, opts ...Option) (*Clazz, error) {
	return Parse(d, path, bytes.NewReader(data), opts...)
}

// Parse reads one class file and returns its facts. Structural problems,
// malformed descriptors included, wrap ErrInvalidClassFile.
func Parse(d *descriptors.Descriptors, path string, r io.Reader, opts ...Option) (*Clazz, error) {
	o := options{crawl: CrawlAuto, maxCrawlMajor: DefaultMaxCrawlMajor}
	for _, opt := range opts {
		opt(&o)
	}

	cf, err := classfile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer cf.Reset()

	p := &parser{
		d:         d,
		cf:        cf,
		cp:        cf.ConstantPool,
		collector: o.collector,
		seen:      make(map[*descriptors.TypeRef]struct{}),
		c: &Clazz{
			Path:         path,
			AccessFlags:  cf.AccessFlags,
			MajorVersion: cf.MajorVersion,
			MinorVersion: cf.MinorVersion,
			referred:     make(map[*descriptors.PackageRef]struct{}),
		},
	}
	if p.collector == nil {
		p.collector = BaseCollector{}
	}
	if err := p.parse(o); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return p.c, nil
}

type parser struct {
	d         *descriptors.Descriptors
	cf        *classfile.ClassFile
	cp        classfile.ConstantPool
	c         *Clazz
	collector Collector
	seen      map[*descriptors.TypeRef]struct{}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidClassFile, err)
}

func (p *parser) parse(o options) error {
	c := p.c
	c.ClassName = p.d.TypeRef(p.cf.ClassName())
	p.collector.ClassBegin(c)

	if p.cf.SuperClass != 0 {
		c.SuperClass = p.d.TypeRef(p.cf.SuperClassName())
		p.referTo(c.SuperClass)
		p.collector.Extends(c.SuperClass)
	}
	for _, name := range p.cf.InterfaceNames() {
		iface := p.d.TypeRef(name)
		c.Interfaces = append(c.Interfaces, iface)
		p.referTo(iface)
	}
	if len(c.Interfaces) > 0 {
		p.collector.Implements(c.Interfaces)
	}

	if err := p.constantPool(); err != nil {
		return err
	}

	hasClassDollarField := false
	for i := range p.cf.Fields {
		m, err := p.member(&p.cf.Fields[i])
		if err != nil {
			return err
		}
		if strings.HasPrefix(m.Name, classDollar) {
			hasClassDollarField = true
		}
		c.Fields = append(c.Fields, m)
		p.collector.Field(m)
	}
	for i := range p.cf.Methods {
		m, err := p.member(&p.cf.Methods[i])
		if err != nil {
			return err
		}
		c.Methods = append(c.Methods, m)
		p.collector.Method(m)
	}

	if err := p.classAttributes(); err != nil {
		return err
	}

	if p.shouldCrawl(o, hasClassDollarField) {
		if err := p.crawl(); err != nil {
			return err
		}
	}

	delete(c.referred, c.ClassName.Package())
	p.collector.ClassEnd(c)
	return nil
}

func (p *parser) shouldCrawl(o options, hasClassDollarField bool) bool {
	switch o.crawl {
	case CrawlNever:
		return false
	case CrawlAlways:
		return true
	}
	if o.collector != nil || hasClassDollarField {
		return true
	}
	return p.c.MajorVersion <= o.maxCrawlMajor && p.forNameRef() != 0
}

func (p *parser) forNameRef() uint16 {
	return p.cp.FindMethodRef("java/lang/Class", "forName", classForNameDescriptor)
}

func (p *parser) referTo(t *descriptors.TypeRef) {
	if t == nil {
		return
	}
	t = t.Element()
	if t.IsPrimitive() {
		return
	}
	if _, ok := p.seen[t]; ok {
		return
	}
	p.seen[t] = struct{}{}
	p.c.referred[t.Package()] = struct{}{}
	p.collector.Reference(t)
}

// referToName handles class constant names, which are plain binary names or
// array descriptors.
func (p *parser) referToName(name string) error {
	if strings.HasPrefix(name, "[") {
		return p.referToDescriptor(name)
	}
	if name == "" {
		return invalid(fmt.Errorf("empty class name"))
	}
	p.referTo(p.d.TypeRef(name))
	return nil
}

func (p *parser) referToDescriptor(raw string) error {
	desc, err := p.d.Descriptor(raw)
	if err != nil {
		return invalid(err)
	}
	for _, t := range desc.Refs() {
		p.referTo(t)
	}
	return nil
}

func (p *parser) referToSignature(sig string) error {
	err := scanSignature(sig, func(binary string) {
		p.referTo(p.d.TypeRef(binary))
	})
	if err != nil {
		return invalid(err)
	}
	return nil
}

func (p *parser) constantPool() error {
	for i := 1; i < p.cp.Count(); i++ {
		var err error
		switch e := p.cp.Entry(uint16(i)).(type) {
		case *classfile.ConstantClassInfo:
			err = p.referToName(p.cp.GetUtf8(e.NameIndex))
		case *classfile.ConstantNameAndTypeInfo:
			err = p.referToDescriptor(p.cp.GetUtf8(e.DescriptorIndex))
		case *classfile.ConstantMethodTypeInfo:
			err = p.referToDescriptor(p.cp.GetUtf8(e.DescriptorIndex))
		}
		if err != nil {
			return fmt.Errorf("constant pool entry %d: %w", i, err)
		}
	}
	return nil
}

func (p *parser) member(mi *classfile.MemberInfo) (Member, error) {
	m := Member{
		Name:        mi.Name(p.cp),
		AccessFlags: mi.AccessFlags,
	}
	desc, err := p.d.Descriptor(mi.Descriptor(p.cp))
	if err != nil {
		return m, invalid(fmt.Errorf("member %s: %w", m.Name, err))
	}
	m.Descriptor = desc
	for _, t := range desc.Refs() {
		p.referTo(t)
	}

	for i := range mi.Attributes {
		switch a := mi.Attributes[i].Parsed.(type) {
		case *classfile.ConstantValueAttribute:
			m.Constant, _ = p.cp.GetConstant(a.ConstantValueIndex)
		case *classfile.SignatureAttribute:
			m.Signature = p.cp.GetUtf8(a.SignatureIndex)
			if err := p.referToSignature(m.Signature); err != nil {
				return m, err
			}
		case *classfile.DeprecatedAttribute:
			m.Deprecated = true
		case *classfile.ExceptionsAttribute:
			for _, idx := range a.ExceptionIndexTable {
				if err := p.referToName(p.cp.GetClassName(idx)); err != nil {
					return m, err
				}
			}
		case *classfile.AnnotationsAttribute:
			anns, err := p.annotations(a)
			if err != nil {
				return m, err
			}
			m.Annotations = append(m.Annotations, anns...)
		case *classfile.ParameterAnnotationsAttribute:
			for _, param := range a.Parameters {
				anns, err := p.annotations(&classfile.AnnotationsAttribute{Visible: a.Visible, Annotations: param})
				if err != nil {
					return m, err
				}
				for _, ann := range anns {
					p.collector.Annotation(ann)
				}
			}
		case *classfile.AnnotationDefaultAttribute:
			if _, err := p.elementValue(a.Value, true); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

func (p *parser) classAttributes() error {
	c := p.c
	for i := range p.cf.Attributes {
		switch a := p.cf.Attributes[i].Parsed.(type) {
		case *classfile.SourceFileAttribute:
			c.SourceFile = p.cp.GetUtf8(a.SourceFileIndex)
		case *classfile.SignatureAttribute:
			c.Signature = p.cp.GetUtf8(a.SignatureIndex)
			if err := p.referToSignature(c.Signature); err != nil {
				return err
			}
		case *classfile.DeprecatedAttribute:
			c.Deprecated = true
		case *classfile.AnnotationsAttribute:
			anns, err := p.annotations(a)
			if err != nil {
				return err
			}
			c.Annotations = append(c.Annotations, anns...)
		case *classfile.InnerClassesAttribute:
			for _, e := range a.Classes {
				ic := InnerClass{
					SimpleName:  p.cp.GetUtf8(e.InnerNameIndex),
					AccessFlags: e.InnerClassAccessFlags,
				}
				if name := p.cp.GetClassName(e.InnerClassInfoIndex); name != "" {
					ic.Inner = p.d.TypeRef(name)
				}
				if name := p.cp.GetClassName(e.OuterClassInfoIndex); name != "" {
					ic.Outer = p.d.TypeRef(name)
				}
				c.InnerClasses = append(c.InnerClasses, ic)
				p.collector.InnerClass(ic)
			}
		case *classfile.EnclosingMethodAttribute:
			ref := MethodRef{Class: p.d.TypeRef(p.cp.GetClassName(a.ClassIndex))}
			ref.Name, ref.Descriptor = p.cp.GetNameAndType(a.MethodIndex)
			c.Enclosing = &ref
			p.collector.EnclosingMethod(ref)
		}
	}
	return nil
}

// annotations converts an annotations attribute. Only runtime-retained
// annotation types count as references.
func (p *parser) annotations(a *classfile.AnnotationsAttribute) ([]Annotation, error) {
	out := make([]Annotation, 0, len(a.Annotations))
	for i := range a.Annotations {
		ann, err := p.annotation(&a.Annotations[i], a.Visible)
		if err != nil {
			return nil, err
		}
		p.collector.Annotation(ann)
		out = append(out, ann)
	}
	return out, nil
}

func (p *parser) annotation(a *classfile.Annotation, runtime bool) (Annotation, error) {
	desc, err := p.d.Descriptor(p.cp.GetUtf8(a.TypeIndex))
	if err != nil {
		return Annotation{}, invalid(err)
	}
	ann := Annotation{Type: desc.Type(), Retention: RetentionClass}
	if runtime {
		ann.Retention = RetentionRuntime
		p.referTo(ann.Type)
	}
	if len(a.Pairs) > 0 {
		ann.Elements = make(map[string]any, len(a.Pairs))
	}
	for _, pair := range a.Pairs {
		v, err := p.elementValue(pair.Value, runtime)
		if err != nil {
			return ann, err
		}
		ann.Elements[p.cp.GetUtf8(pair.NameIndex)] = v
	}
	return ann, nil
}

func (p *parser) elementValue(ev classfile.ElementValue, runtime bool) (any, error) {
	switch ev.Tag {
	case 's':
		return p.cp.GetUtf8(ev.ConstIndex), nil
	case 'Z':
		v, _ := p.cp.GetConstant(ev.ConstIndex)
		i, _ := v.(int32)
		return i != 0, nil
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S':
		v, _ := p.cp.GetConstant(ev.ConstIndex)
		return v, nil
	case 'e':
		desc, err := p.d.Descriptor(p.cp.GetUtf8(ev.Enum.TypeNameIndex))
		if err != nil {
			return nil, invalid(err)
		}
		if runtime {
			p.referTo(desc.Type())
		}
		return EnumValue{Type: desc.Type(), Name: p.cp.GetUtf8(ev.Enum.ConstNameIndex)}, nil
	case 'c':
		desc, err := p.d.Descriptor(p.cp.GetUtf8(ev.ClassIndex))
		if err != nil {
			return nil, invalid(err)
		}
		if runtime {
			p.referTo(desc.Type())
		}
		return desc.Type(), nil
	case '@':
		return p.annotation(ev.Annotation, runtime)
	case '[':
		values := make([]any, 0, len(ev.Values))
		for _, v := range ev.Values {
			value, err := p.elementValue(v, runtime)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return values, nil
	}
	return nil, nil
}
