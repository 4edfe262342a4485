package classfile

type ConstantPoolEntry interface {
	Tag() ConstantTag
}

type ConstantUtf8Info struct{ Value string }
type ConstantIntegerInfo struct{ Value int32 }
type ConstantFloatInfo struct{ Value float32 }
type ConstantLongInfo struct{ Value int64 }
type ConstantDoubleInfo struct{ Value float64 }
type ConstantClassInfo struct{ NameIndex uint16 }
type ConstantStringInfo struct{ StringIndex uint16 }
type ConstantMethodTypeInfo struct{ DescriptorIndex uint16 }
type ConstantModuleInfo struct{ NameIndex uint16 }
type ConstantPackageInfo struct{ NameIndex uint16 }

// ConstantRefInfo covers Fieldref, Methodref and InterfaceMethodref entries.
type ConstantRefInfo struct {
	Kind             ConstantTag
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantNameAndTypeInfo struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

type ConstantMethodHandleInfo struct {
	ReferenceKind  MethodHandleKind
	ReferenceIndex uint16
}

// ConstantDynamicInfo covers Dynamic and InvokeDynamic entries.
type ConstantDynamicInfo struct {
	Kind                     ConstantTag
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantUtf8Info) Tag() ConstantTag         { return ConstantUtf8 }
func (c *ConstantIntegerInfo) Tag() ConstantTag      { return ConstantInteger }
func (c *ConstantFloatInfo) Tag() ConstantTag        { return ConstantFloat }
func (c *ConstantLongInfo) Tag() ConstantTag         { return ConstantLong }
func (c *ConstantDoubleInfo) Tag() ConstantTag       { return ConstantDouble }
func (c *ConstantClassInfo) Tag() ConstantTag        { return ConstantClass }
func (c *ConstantStringInfo) Tag() ConstantTag       { return ConstantString }
func (c *ConstantMethodTypeInfo) Tag() ConstantTag   { return ConstantMethodType }
func (c *ConstantModuleInfo) Tag() ConstantTag       { return ConstantModule }
func (c *ConstantPackageInfo) Tag() ConstantTag      { return ConstantPackage }
func (c *ConstantRefInfo) Tag() ConstantTag          { return c.Kind }
func (c *ConstantNameAndTypeInfo) Tag() ConstantTag  { return ConstantNameAndType }
func (c *ConstantMethodHandleInfo) Tag() ConstantTag { return ConstantMethodHandle }
func (c *ConstantDynamicInfo) Tag() ConstantTag      { return c.Kind }

// ConstantPool is indexed from 1 like the class file; slot 0 and the second
// slot of long and double entries hold nil.
type ConstantPool []ConstantPoolEntry

func entryAt[T ConstantPoolEntry](cp ConstantPool, index uint16) (T, bool) {
	var zero T
	if index == 0 || int(index) >= len(cp) {
		return zero, false
	}
	entry, ok := cp[index].(T)
	return entry, ok
}

// Count is the constant_pool_count of the class file.
func (cp ConstantPool) Count() int { return len(cp) }

func (cp ConstantPool) Entry(index uint16) ConstantPoolEntry {
	if int(index) >= len(cp) {
		return nil
	}
	return cp[index]
}

func (cp ConstantPool) GetUtf8(index uint16) string {
	if e, ok := entryAt[*ConstantUtf8Info](cp, index); ok {
		return e.Value
	}
	return ""
}

func (cp ConstantPool) GetClassName(index uint16) string {
	if e, ok := entryAt[*ConstantClassInfo](cp, index); ok {
		return cp.GetUtf8(e.NameIndex)
	}
	return ""
}

func (cp ConstantPool) GetString(index uint16) (string, bool) {
	if e, ok := entryAt[*ConstantStringInfo](cp, index); ok {
		return cp.GetUtf8(e.StringIndex), true
	}
	return "", false
}

func (cp ConstantPool) GetNameAndType(index uint16) (name, descriptor string) {
	if e, ok := entryAt[*ConstantNameAndTypeInfo](cp, index); ok {
		return cp.GetUtf8(e.NameIndex), cp.GetUtf8(e.DescriptorIndex)
	}
	return "", ""
}

// GetRef resolves a field, method or interface method reference.
func (cp ConstantPool) GetRef(index uint16) (className, name, descriptor string, ok bool) {
	e, ok := entryAt[*ConstantRefInfo](cp, index)
	if !ok {
		return "", "", "", false
	}
	name, descriptor = cp.GetNameAndType(e.NameAndTypeIndex)
	return cp.GetClassName(e.ClassIndex), name, descriptor, true
}

func (cp ConstantPool) GetMethodType(index uint16) string {
	if e, ok := entryAt[*ConstantMethodTypeInfo](cp, index); ok {
		return cp.GetUtf8(e.DescriptorIndex)
	}
	return ""
}

// GetConstant returns the Go value of an Integer, Float, Long, Double or String entry.
func (cp ConstantPool) GetConstant(index uint16) (any, bool) {
	switch e := cp.Entry(index).(type) {
	case *ConstantIntegerInfo:
		return e.Value, true
	case *ConstantFloatInfo:
		return e.Value, true
	case *ConstantLongInfo:
		return e.Value, true
	case *ConstantDoubleInfo:
		return e.Value, true
	case *ConstantStringInfo:
		return cp.GetUtf8(e.StringIndex), true
	}
	return nil, false
}

// FindMethodRef returns the pool index of a Methodref to class.name descriptor, or 0.
func (cp ConstantPool) FindMethodRef(className, name, descriptor string) uint16 {
	for i := 1; i < len(cp); i++ {
		e, ok := cp[i].(*ConstantRefInfo)
		if !ok || e.Kind != ConstantMethodref {
			continue
		}
		if c, n, d, _ := cp.GetRef(uint16(i)); c == className && n == name && d == descriptor {
			return uint16(i)
		}
	}
	return 0
}
