// Package classfile is a streaming reader for JVM class files.
package classfile

type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool ConstantPool
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []MemberInfo
	Methods      []MemberInfo
	Attributes   []AttributeInfo
}

func (cf *ClassFile) ClassName() string {
	return cf.ConstantPool.GetClassName(cf.ThisClass)
}

func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	return cf.ConstantPool.GetClassName(cf.SuperClass)
}

func (cf *ClassFile) InterfaceNames() []string {
	names := make([]string, len(cf.Interfaces))
	for i, idx := range cf.Interfaces {
		names[i] = cf.ConstantPool.GetClassName(idx)
	}
	return names
}

func (cf *ClassFile) GetField(name string) *MemberInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name(cf.ConstantPool) == name {
			return &cf.Fields[i]
		}
	}
	return nil
}

func (cf *ClassFile) GetMethod(name, descriptor string) *MemberInfo {
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if m.Name(cf.ConstantPool) == name && (descriptor == "" || m.Descriptor(cf.ConstantPool) == descriptor) {
			return m
		}
	}
	return nil
}

func (cf *ClassFile) GetAttribute(name string) *AttributeInfo {
	return findAttribute(cf.Attributes, name)
}

// Reset releases the constant pool and member tables once the caller has
// extracted what it needs.
func (cf *ClassFile) Reset() {
	cf.ConstantPool = nil
	cf.Interfaces = nil
	cf.Fields = nil
	cf.Methods = nil
	cf.Attributes = nil
}

// MemberInfo is a field_info or method_info structure.
type MemberInfo struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

func (m *MemberInfo) Name(cp ConstantPool) string {
	return cp.GetUtf8(m.NameIndex)
}

func (m *MemberInfo) Descriptor(cp ConstantPool) string {
	return cp.GetUtf8(m.DescriptorIndex)
}

func (m *MemberInfo) GetAttribute(name string) *AttributeInfo {
	return findAttribute(m.Attributes, name)
}

func (m *MemberInfo) Code() *CodeAttribute {
	if a := m.GetAttribute("Code"); a != nil {
		code, _ := a.Parsed.(*CodeAttribute)
		return code
	}
	return nil
}

func findAttribute(attrs []AttributeInfo, name string) *AttributeInfo {
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}
