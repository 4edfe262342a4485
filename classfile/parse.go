package classfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var ErrInvalidClassFile = errors.New("invalid class file")

type reader struct {
	r   io.Reader
	err error
}

func (r *reader) fill(buf []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.r, buf)
	if r.err == io.EOF {
		r.err = io.ErrUnexpectedEOF
	}
}

func (r *reader) readU1() uint8 {
	var buf [1]byte
	r.fill(buf[:])
	return buf[0]
}

func (r *reader) readU2() uint16 {
	var buf [2]byte
	r.fill(buf[:])
	return binary.BigEndian.Uint16(buf[:])
}

func (r *reader) readU4() uint32 {
	var buf [4]byte
	r.fill(buf[:])
	return binary.BigEndian.Uint32(buf[:])
}

// readBytes grows its buffer as data arrives so a corrupt length cannot force
// a huge allocation up front.
func (r *reader) readBytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	var buf bytes.Buffer
	_, r.err = io.CopyN(&buf, r.r, int64(n))
	if r.err == io.EOF {
		r.err = io.ErrUnexpectedEOF
	}
	return buf.Bytes()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidClassFile, fmt.Sprintf(format, args...))
}

func failed(what string, err error) error {
	if errors.Is(err, ErrInvalidClassFile) {
		return fmt.Errorf("failed to read %s: %w", what, err)
	}
	return fmt.Errorf("%w: failed to read %s: %w", ErrInvalidClassFile, what, err)
}

func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one class file. Every structural problem is reported as an
// error wrapping ErrInvalidClassFile.
func Parse(rd io.Reader) (*ClassFile, error) {
	r := &reader{r: rd}

	magic := r.readU4()
	if r.err != nil {
		return nil, failed("magic", r.err)
	}
	if magic != Magic {
		return nil, invalid("bad magic number 0x%X", magic)
	}

	cf := &ClassFile{
		MinorVersion: r.readU2(),
		MajorVersion: r.readU2(),
	}
	if r.err != nil {
		return nil, failed("version", r.err)
	}

	count := r.readU2()
	if r.err != nil {
		return nil, failed("constant pool count", r.err)
	}
	if count == 0 {
		return nil, invalid("constant pool count is zero")
	}

	cf.ConstantPool = make(ConstantPool, count)
	for i := 1; i < int(count); i++ {
		entry, err := readConstantPoolEntry(r)
		if err != nil {
			return nil, failed(fmt.Sprintf("constant pool entry %d", i), err)
		}
		cf.ConstantPool[i] = entry
		i += entry.Tag().Slots() - 1
	}

	cf.AccessFlags = AccessFlags(r.readU2())
	cf.ThisClass = r.readU2()
	cf.SuperClass = r.readU2()
	interfacesCount := r.readU2()
	if r.err != nil {
		return nil, failed("class info", r.err)
	}
	if _, ok := entryAt[*ConstantClassInfo](cf.ConstantPool, cf.ThisClass); !ok {
		return nil, invalid("this_class %d is not a class entry", cf.ThisClass)
	}
	if cf.SuperClass != 0 {
		if _, ok := entryAt[*ConstantClassInfo](cf.ConstantPool, cf.SuperClass); !ok {
			return nil, invalid("super_class %d is not a class entry", cf.SuperClass)
		}
	}

	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.readU2()
	}
	if r.err != nil {
		return nil, failed("interfaces", r.err)
	}

	var err error
	if cf.Fields, err = readMembers(r, cf.ConstantPool); err != nil {
		return nil, fmt.Errorf("failed to read fields: %w", err)
	}
	if cf.Methods, err = readMembers(r, cf.ConstantPool); err != nil {
		return nil, fmt.Errorf("failed to read methods: %w", err)
	}
	if cf.Attributes, err = readAttributes(r, cf.ConstantPool); err != nil {
		return nil, fmt.Errorf("failed to read class attributes: %w", err)
	}

	return cf, nil
}

func readConstantPoolEntry(r *reader) (ConstantPoolEntry, error) {
	tag := ConstantTag(r.readU1())
	if r.err != nil {
		return nil, r.err
	}

	var entry ConstantPoolEntry
	switch tag {
	case ConstantUtf8:
		length := r.readU2()
		entry = &ConstantUtf8Info{Value: decodeModifiedUtf8(r.readBytes(int(length)))}
	case ConstantInteger:
		entry = &ConstantIntegerInfo{Value: int32(r.readU4())}
	case ConstantFloat:
		entry = &ConstantFloatInfo{Value: math.Float32frombits(r.readU4())}
	case ConstantLong:
		high, low := r.readU4(), r.readU4()
		entry = &ConstantLongInfo{Value: int64(uint64(high)<<32 | uint64(low))}
	case ConstantDouble:
		high, low := r.readU4(), r.readU4()
		entry = &ConstantDoubleInfo{Value: math.Float64frombits(uint64(high)<<32 | uint64(low))}
	case ConstantClass:
		entry = &ConstantClassInfo{NameIndex: r.readU2()}
	case ConstantString:
		entry = &ConstantStringInfo{StringIndex: r.readU2()}
	case ConstantFieldref, ConstantMethodref, ConstantInterfaceMethodref:
		entry = &ConstantRefInfo{Kind: tag, ClassIndex: r.readU2(), NameAndTypeIndex: r.readU2()}
	case ConstantNameAndType:
		entry = &ConstantNameAndTypeInfo{NameIndex: r.readU2(), DescriptorIndex: r.readU2()}
	case ConstantMethodHandle:
		entry = &ConstantMethodHandleInfo{ReferenceKind: MethodHandleKind(r.readU1()), ReferenceIndex: r.readU2()}
	case ConstantMethodType:
		entry = &ConstantMethodTypeInfo{DescriptorIndex: r.readU2()}
	case ConstantDynamic, ConstantInvokeDynamic:
		entry = &ConstantDynamicInfo{Kind: tag, BootstrapMethodAttrIndex: r.readU2(), NameAndTypeIndex: r.readU2()}
	case ConstantModule:
		entry = &ConstantModuleInfo{NameIndex: r.readU2()}
	case ConstantPackage:
		entry = &ConstantPackageInfo{NameIndex: r.readU2()}
	default:
		return nil, invalid("unknown constant pool tag %d", tag)
	}
	if r.err != nil {
		return nil, r.err
	}
	return entry, nil
}

func readMembers(r *reader, cp ConstantPool) ([]MemberInfo, error) {
	count := r.readU2()
	if r.err != nil {
		return nil, failed("member count", r.err)
	}
	members := make([]MemberInfo, count)
	for i := range members {
		m := &members[i]
		m.AccessFlags = AccessFlags(r.readU2())
		m.NameIndex = r.readU2()
		m.DescriptorIndex = r.readU2()
		if r.err != nil {
			return nil, failed(fmt.Sprintf("member %d", i), r.err)
		}
		attrs, err := readAttributes(r, cp)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		m.Attributes = attrs
	}
	return members, nil
}

func readAttributes(r *reader, cp ConstantPool) ([]AttributeInfo, error) {
	count := r.readU2()
	if r.err != nil {
		return nil, failed("attribute count", r.err)
	}
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		nameIndex := r.readU2()
		length := r.readU4()
		info := r.readBytes(int(length))
		if r.err != nil {
			return nil, failed(fmt.Sprintf("attribute %d", i), r.err)
		}
		attr, err := decodeAttribute(cp.GetUtf8(nameIndex), info, cp)
		if err != nil {
			return nil, err
		}
		attrs[i] = attr
	}
	return attrs, nil
}

func decodeModifiedUtf8(data []byte) string {
	runes := make([]rune, 0, len(data))
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b&0x80 == 0:
			runes = append(runes, rune(b))
			i++
		case b&0xE0 == 0xC0 && i+1 < len(data):
			runes = append(runes, rune(b&0x1F)<<6|rune(data[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0 && i+2 < len(data):
			r := rune(b&0x0F)<<12 | rune(data[i+1]&0x3F)<<6 | rune(data[i+2]&0x3F)
			if r >= 0xD800 && r <= 0xDBFF && i+5 < len(data) && data[i+3] == 0xED {
				low := rune(data[i+3]&0x0F)<<12 | rune(data[i+4]&0x3F)<<6 | rune(data[i+5]&0x3F)
				if low >= 0xDC00 && low <= 0xDFFF {
					runes = append(runes, 0x10000+((r-0xD800)<<10)+(low-0xDC00))
					i += 6
					continue
				}
			}
			runes = append(runes, r)
			i += 3
		default:
			runes = append(runes, rune(b))
			i++
		}
	}
	return string(runes)
}
