package classfile

import (
	"encoding/binary"
	"fmt"
)

// AttributeInfo keeps the raw bytes of every attribute; the ones used for
// dependency analysis are also decoded into Parsed.
type AttributeInfo struct {
	Name   string
	Info   []byte
	Parsed any
}

type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
	Attributes     []AttributeInfo
}

type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

type SourceFileAttribute struct{ SourceFileIndex uint16 }
type ConstantValueAttribute struct{ ConstantValueIndex uint16 }
type SignatureAttribute struct{ SignatureIndex uint16 }
type ExceptionsAttribute struct{ ExceptionIndexTable []uint16 }
type DeprecatedAttribute struct{}

type InnerClassesAttribute struct {
	Classes []InnerClassEntry
}

type InnerClassEntry struct {
	InnerClassInfoIndex   uint16
	OuterClassInfoIndex   uint16
	InnerNameIndex        uint16
	InnerClassAccessFlags AccessFlags
}

type EnclosingMethodAttribute struct {
	ClassIndex  uint16
	MethodIndex uint16
}

// AnnotationsAttribute is RuntimeVisibleAnnotations or RuntimeInvisibleAnnotations.
type AnnotationsAttribute struct {
	Visible     bool
	Annotations []Annotation
}

// ParameterAnnotationsAttribute is Runtime(In)VisibleParameterAnnotations.
type ParameterAnnotationsAttribute struct {
	Visible    bool
	Parameters [][]Annotation
}

type AnnotationDefaultAttribute struct {
	Value ElementValue
}

type Annotation struct {
	TypeIndex uint16
	Pairs     []ElementValuePair
}

type ElementValuePair struct {
	NameIndex uint16
	Value     ElementValue
}

// ElementValue is one element_value. Tag selects which field is set:
// constants and 's' use ConstIndex, 'c' uses ClassIndex, 'e' uses Enum,
// '@' uses Annotation and '[' uses Values.
type ElementValue struct {
	Tag        byte
	ConstIndex uint16
	ClassIndex uint16
	Enum       EnumConstValue
	Annotation *Annotation
	Values     []ElementValue
}

type EnumConstValue struct {
	TypeNameIndex  uint16
	ConstNameIndex uint16
}

// decoder walks an attribute payload; the first short read sticks.
type decoder struct {
	name string
	b    []byte
	off  int
	err  error
}

func (d *decoder) u1() uint8 {
	if d.err != nil {
		return 0
	}
	if d.off+1 > len(d.b) {
		d.err = invalid("%s attribute truncated at %d", d.name, d.off)
		return 0
	}
	v := d.b[d.off]
	d.off++
	return v
}

func (d *decoder) u2() uint16 {
	if d.err != nil {
		return 0
	}
	if d.off+2 > len(d.b) {
		d.err = invalid("%s attribute truncated at %d", d.name, d.off)
		return 0
	}
	v := binary.BigEndian.Uint16(d.b[d.off:])
	d.off += 2
	return v
}

func (d *decoder) u4() uint32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > len(d.b) {
		d.err = invalid("%s attribute truncated at %d", d.name, d.off)
		return 0
	}
	v := binary.BigEndian.Uint32(d.b[d.off:])
	d.off += 4
	return v
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.b) {
		d.err = invalid("%s attribute truncated at %d", d.name, d.off)
		return nil
	}
	v := d.b[d.off : d.off+n]
	d.off += n
	return v
}

func (d *decoder) u2s() []uint16 {
	n := d.u2()
	out := make([]uint16, 0, n)
	for i := 0; i < int(n) && d.err == nil; i++ {
		out = append(out, d.u2())
	}
	return out
}

func (d *decoder) annotations() []Annotation {
	n := d.u2()
	out := make([]Annotation, 0, n)
	for i := 0; i < int(n) && d.err == nil; i++ {
		out = append(out, d.annotation(0))
	}
	return out
}

const maxElementDepth = 32

func (d *decoder) annotation(depth int) Annotation {
	a := Annotation{TypeIndex: d.u2()}
	n := d.u2()
	for i := 0; i < int(n) && d.err == nil; i++ {
		pair := ElementValuePair{NameIndex: d.u2()}
		pair.Value = d.elementValue(depth + 1)
		a.Pairs = append(a.Pairs, pair)
	}
	return a
}

func (d *decoder) elementValue(depth int) ElementValue {
	if depth > maxElementDepth {
		d.err = invalid("%s attribute nests deeper than %d", d.name, maxElementDepth)
		return ElementValue{}
	}
	ev := ElementValue{Tag: d.u1()}
	switch ev.Tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		ev.ConstIndex = d.u2()
	case 'c':
		ev.ClassIndex = d.u2()
	case 'e':
		ev.Enum = EnumConstValue{TypeNameIndex: d.u2(), ConstNameIndex: d.u2()}
	case '@':
		a := d.annotation(depth)
		ev.Annotation = &a
	case '[':
		n := d.u2()
		for i := 0; i < int(n) && d.err == nil; i++ {
			ev.Values = append(ev.Values, d.elementValue(depth+1))
		}
	default:
		if d.err == nil {
			d.err = invalid("%s attribute has element value tag %q", d.name, ev.Tag)
		}
	}
	return ev
}

func decodeAttribute(name string, info []byte, cp ConstantPool) (AttributeInfo, error) {
	attr := AttributeInfo{Name: name, Info: info}
	d := &decoder{name: name, b: info}

	switch name {
	case "Code":
		code := &CodeAttribute{MaxStack: d.u2(), MaxLocals: d.u2()}
		code.Code = d.bytes(int(d.u4()))
		n := d.u2()
		for i := 0; i < int(n) && d.err == nil; i++ {
			code.ExceptionTable = append(code.ExceptionTable, ExceptionTableEntry{
				StartPC: d.u2(), EndPC: d.u2(), HandlerPC: d.u2(), CatchType: d.u2(),
			})
		}
		if d.err == nil {
			nested, err := decodeNested(d, cp)
			if err != nil {
				return attr, err
			}
			code.Attributes = nested
		}
		attr.Parsed = code
	case "SourceFile":
		attr.Parsed = &SourceFileAttribute{SourceFileIndex: d.u2()}
	case "ConstantValue":
		attr.Parsed = &ConstantValueAttribute{ConstantValueIndex: d.u2()}
	case "Signature":
		attr.Parsed = &SignatureAttribute{SignatureIndex: d.u2()}
	case "Exceptions":
		attr.Parsed = &ExceptionsAttribute{ExceptionIndexTable: d.u2s()}
	case "Deprecated":
		attr.Parsed = &DeprecatedAttribute{}
	case "InnerClasses":
		ic := &InnerClassesAttribute{}
		n := d.u2()
		for i := 0; i < int(n) && d.err == nil; i++ {
			ic.Classes = append(ic.Classes, InnerClassEntry{
				InnerClassInfoIndex:   d.u2(),
				OuterClassInfoIndex:   d.u2(),
				InnerNameIndex:        d.u2(),
				InnerClassAccessFlags: AccessFlags(d.u2()),
			})
		}
		attr.Parsed = ic
	case "EnclosingMethod":
		attr.Parsed = &EnclosingMethodAttribute{ClassIndex: d.u2(), MethodIndex: d.u2()}
	case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
		attr.Parsed = &AnnotationsAttribute{
			Visible:     name == "RuntimeVisibleAnnotations",
			Annotations: d.annotations(),
		}
	case "RuntimeVisibleParameterAnnotations", "RuntimeInvisibleParameterAnnotations":
		pa := &ParameterAnnotationsAttribute{Visible: name == "RuntimeVisibleParameterAnnotations"}
		n := d.u1()
		for i := 0; i < int(n) && d.err == nil; i++ {
			pa.Parameters = append(pa.Parameters, d.annotations())
		}
		attr.Parsed = pa
	case "AnnotationDefault":
		attr.Parsed = &AnnotationDefaultAttribute{Value: d.elementValue(0)}
	default:
		return attr, nil
	}

	if d.err != nil {
		return attr, d.err
	}
	return attr, nil
}

func decodeNested(d *decoder, cp ConstantPool) ([]AttributeInfo, error) {
	n := d.u2()
	var attrs []AttributeInfo
	for i := 0; i < int(n); i++ {
		nameIndex := d.u2()
		info := d.bytes(int(d.u4()))
		if d.err != nil {
			return nil, d.err
		}
		attr, err := decodeAttribute(cp.GetUtf8(nameIndex), info, cp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
		attrs = append(attrs, attr)
	}
	return attrs, d.err
}
