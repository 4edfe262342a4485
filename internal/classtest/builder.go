// Package classtest assembles class files in memory for tests.
package classtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccInterface = 0x0200
	AccAbstract  = 0x0400
	AccSynthetic = 0x1000
)

// Builder writes a class file with a deduplicated constant pool.
type Builder struct {
	major, minor uint16
	access       uint16
	this, super  uint16
	interfaces   []uint16
	pool         [][]byte
	slots        uint16
	index        map[string]uint16
	fields       [][]byte
	methods      [][]byte
	attrs        []Attribute
}

type Attribute struct {
	NameIndex uint16
	Data      []byte
}

// New starts a public class extending java/lang/Object, compiled for Java 8.
func New(name string) *Builder {
	b := &Builder{major: 52, access: AccPublic | AccSuper, slots: 1, index: map[string]uint16{}}
	b.this = b.Class(name)
	b.super = b.Class("java/lang/Object")
	return b
}

func (b *Builder) Version(major, minor uint16) *Builder {
	b.major, b.minor = major, minor
	return b
}

func (b *Builder) Access(flags uint16) *Builder {
	b.access = flags
	return b
}

// Super sets the superclass; "" leaves super_class zero as for java/lang/Object.
func (b *Builder) Super(name string) *Builder {
	if name == "" {
		b.super = 0
		return b
	}
	b.super = b.Class(name)
	return b
}

func (b *Builder) Implements(names ...string) *Builder {
	for _, n := range names {
		b.interfaces = append(b.interfaces, b.Class(n))
	}
	return b
}

func (b *Builder) add(key string, slots uint16, entry []byte) uint16 {
	if idx, ok := b.index[key]; ok && key != "" {
		return idx
	}
	idx := b.slots
	b.pool = append(b.pool, entry)
	b.slots += slots
	if key != "" {
		b.index[key] = idx
	}
	return idx
}

// Raw appends an undeduplicated pool entry occupying one slot.
func (b *Builder) Raw(entry ...byte) uint16 {
	return b.add("", 1, entry)
}

func (b *Builder) Utf8(s string) uint16 {
	var buf bytes.Buffer
	buf.WriteByte(1)
	u2(&buf, uint16(len(s)))
	buf.WriteString(s)
	return b.add("utf8:"+s, 1, buf.Bytes())
}

func (b *Builder) Class(name string) uint16 {
	n := b.Utf8(name)
	return b.add("class:"+name, 1, pair(7, n))
}

func (b *Builder) String(s string) uint16 {
	n := b.Utf8(s)
	return b.add("string:"+s, 1, pair(8, n))
}

func (b *Builder) Integer(v int32) uint16 {
	var buf bytes.Buffer
	buf.WriteByte(3)
	u4(&buf, uint32(v))
	return b.add(fmt.Sprintf("int:%d", v), 1, buf.Bytes())
}

func (b *Builder) Long(v int64) uint16 {
	var buf bytes.Buffer
	buf.WriteByte(5)
	u4(&buf, uint32(uint64(v)>>32))
	u4(&buf, uint32(v))
	return b.add(fmt.Sprintf("long:%d", v), 2, buf.Bytes())
}

func (b *Builder) Double(v float64) uint16 {
	bits := math.Float64bits(v)
	var buf bytes.Buffer
	buf.WriteByte(6)
	u4(&buf, uint32(bits>>32))
	u4(&buf, uint32(bits))
	return b.add(fmt.Sprintf("double:%x", bits), 2, buf.Bytes())
}

func (b *Builder) NameAndType(name, desc string) uint16 {
	n, d := b.Utf8(name), b.Utf8(desc)
	return b.add("nat:"+name+":"+desc, 1, pair(12, n, d))
}

func (b *Builder) FieldRef(class, name, desc string) uint16 {
	c, nt := b.Class(class), b.NameAndType(name, desc)
	return b.add("field:"+class+"."+name+desc, 1, pair(9, c, nt))
}

func (b *Builder) MethodRef(class, name, desc string) uint16 {
	c, nt := b.Class(class), b.NameAndType(name, desc)
	return b.add("method:"+class+"."+name+desc, 1, pair(10, c, nt))
}

func (b *Builder) InterfaceMethodRef(class, name, desc string) uint16 {
	c, nt := b.Class(class), b.NameAndType(name, desc)
	return b.add("imethod:"+class+"."+name+desc, 1, pair(11, c, nt))
}

func (b *Builder) MethodType(desc string) uint16 {
	d := b.Utf8(desc)
	return b.add("mtype:"+desc, 1, pair(16, d))
}

func (b *Builder) Field(access uint16, name, desc string, attrs ...Attribute) *Builder {
	b.fields = append(b.fields, b.member(access, name, desc, attrs))
	return b
}

func (b *Builder) Method(access uint16, name, desc string, attrs ...Attribute) *Builder {
	b.methods = append(b.methods, b.member(access, name, desc, attrs))
	return b
}

// Attribute adds class-level attributes.
func (b *Builder) Attribute(attrs ...Attribute) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

func (b *Builder) member(access uint16, name, desc string, attrs []Attribute) []byte {
	var buf bytes.Buffer
	u2(&buf, access)
	u2(&buf, b.Utf8(name))
	u2(&buf, b.Utf8(desc))
	writeAttributes(&buf, attrs)
	return buf.Bytes()
}

func (b *Builder) attribute(name string, data []byte) Attribute {
	return Attribute{NameIndex: b.Utf8(name), Data: data}
}

func (b *Builder) Code(code []byte) Attribute {
	var buf bytes.Buffer
	u2(&buf, 10)
	u2(&buf, 10)
	u4(&buf, uint32(len(code)))
	buf.Write(code)
	u2(&buf, 0)
	u2(&buf, 0)
	return b.attribute("Code", buf.Bytes())
}

func (b *Builder) SourceFile(name string) Attribute {
	return b.attribute("SourceFile", index(b.Utf8(name)))
}

func (b *Builder) Signature(sig string) Attribute {
	return b.attribute("Signature", index(b.Utf8(sig)))
}

func (b *Builder) ConstantValue(idx uint16) Attribute {
	return b.attribute("ConstantValue", index(idx))
}

func (b *Builder) Deprecated() Attribute {
	return b.attribute("Deprecated", nil)
}

func (b *Builder) Exceptions(classes ...string) Attribute {
	var buf bytes.Buffer
	u2(&buf, uint16(len(classes)))
	for _, c := range classes {
		u2(&buf, b.Class(c))
	}
	return b.attribute("Exceptions", buf.Bytes())
}

func (b *Builder) InnerClass(inner, outer, simple string, access uint16) Attribute {
	var buf bytes.Buffer
	u2(&buf, 1)
	u2(&buf, b.Class(inner))
	u2(&buf, b.Class(outer))
	u2(&buf, b.Utf8(simple))
	u2(&buf, access)
	return b.attribute("InnerClasses", buf.Bytes())
}

func (b *Builder) EnclosingMethod(class, name, desc string) Attribute {
	var buf bytes.Buffer
	u2(&buf, b.Class(class))
	u2(&buf, b.NameAndType(name, desc))
	return b.attribute("EnclosingMethod", buf.Bytes())
}

// Element is one annotation element. Exactly one of the value fields is used,
// picked by Tag: 's' String, 'I' Int, 'e' Enum, 'c' Class.
type Element struct {
	Name   string
	Tag    byte
	String string
	Int    int32
	Enum   [2]string
	Class  string
}

type Annotation struct {
	Type     string
	Elements []Element
}

func (b *Builder) Annotations(visible bool, anns ...Annotation) Attribute {
	name := "RuntimeInvisibleAnnotations"
	if visible {
		name = "RuntimeVisibleAnnotations"
	}
	var buf bytes.Buffer
	u2(&buf, uint16(len(anns)))
	for _, a := range anns {
		u2(&buf, b.Utf8(a.Type))
		u2(&buf, uint16(len(a.Elements)))
		for _, e := range a.Elements {
			u2(&buf, b.Utf8(e.Name))
			buf.WriteByte(e.Tag)
			switch e.Tag {
			case 's':
				u2(&buf, b.Utf8(e.String))
			case 'I':
				u2(&buf, b.Integer(e.Int))
			case 'e':
				u2(&buf, b.Utf8(e.Enum[0]))
				u2(&buf, b.Utf8(e.Enum[1]))
			case 'c':
				u2(&buf, b.Utf8(e.Class))
			}
		}
	}
	return b.attribute(name, buf.Bytes())
}

func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	u4(&buf, 0xCAFEBABE)
	u2(&buf, b.minor)
	u2(&buf, b.major)
	u2(&buf, b.slots)
	for _, e := range b.pool {
		buf.Write(e)
	}
	u2(&buf, b.access)
	u2(&buf, b.this)
	u2(&buf, b.super)
	u2(&buf, uint16(len(b.interfaces)))
	for _, i := range b.interfaces {
		u2(&buf, i)
	}
	for _, members := range [][][]byte{b.fields, b.methods} {
		u2(&buf, uint16(len(members)))
		for _, m := range members {
			buf.Write(m)
		}
	}
	writeAttributes(&buf, b.attrs)
	return buf.Bytes()
}

func writeAttributes(buf *bytes.Buffer, attrs []Attribute) {
	u2(buf, uint16(len(attrs)))
	for _, a := range attrs {
		u2(buf, a.NameIndex)
		u4(buf, uint32(len(a.Data)))
		buf.Write(a.Data)
	}
}

func pair(tag byte, values ...uint16) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tag)
	for _, v := range values {
		u2(&buf, v)
	}
	return buf.Bytes()
}

func index(i uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, i)
}

func u2(buf *bytes.Buffer, v uint16) {
	buf.Write(binary.BigEndian.AppendUint16(nil, v))
}

func u4(buf *bytes.Buffer, v uint32) {
	buf.Write(binary.BigEndian.AppendUint32(nil, v))
}

// Code helpers.

// Ldc loads a constant, widening to ldc_w when the index needs two bytes.
func Ldc(idx uint16) []byte {
	if idx < 256 {
		return []byte{0x12, byte(idx)}
	}
	return []byte{0x13, byte(idx >> 8), byte(idx)}
}

func InvokeStatic(idx uint16) []byte {
	return []byte{0xb8, byte(idx >> 8), byte(idx)}
}

func Pop() []byte    { return []byte{0x57} }
func Return() []byte { return []byte{0xb1} }

// Ops concatenates instruction fragments.
func Ops(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}
