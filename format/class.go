package format

import (
	"strings"

	"github.com/dhamidi/bundlegen/classfile"
	"github.com/dhamidi/bundlegen/clazz"
)

func classKind(c *clazz.Clazz) string {
	switch {
	case c.IsAnnotation():
		return "annotation"
	case c.IsEnum():
		return "enum"
	case c.IsInterface():
		return "interface"
	case c.IsModule():
		return "module"
	case c.IsPackageInfo():
		return "package-info"
	default:
		return "class"
	}
}

func visibility(f classfile.AccessFlags) string {
	switch {
	case f.IsPublic():
		return "public"
	case f.IsProtected():
		return "protected"
	case f.IsPrivate():
		return "private"
	}
	return "package"
}

func classModifiers(c *clazz.Clazz) []string {
	var mods []string
	if c.AccessFlags.IsFinal() {
		mods = append(mods, "final")
	}
	if c.AccessFlags.IsAbstract() && !c.IsInterface() {
		mods = append(mods, "abstract")
	}
	if c.AccessFlags.IsSynthetic() {
		mods = append(mods, "synthetic")
	}
	if c.Deprecated {
		mods = append(mods, "deprecated")
	}
	return mods
}

// memberModifiers names the flags shared by fields and methods. The bits
// that mean different things for each (volatile/bridge, transient/varargs)
// are resolved by isMethod.
func memberModifiers(m clazz.Member, isMethod bool) []string {
	f := m.AccessFlags
	var mods []string
	if f.IsStatic() {
		mods = append(mods, "static")
	}
	if f.IsFinal() {
		mods = append(mods, "final")
	}
	if isMethod {
		if f&classfile.AccSynchronized != 0 {
			mods = append(mods, "synchronized")
		}
		if f&classfile.AccBridge != 0 {
			mods = append(mods, "bridge")
		}
		if f&classfile.AccVarargs != 0 {
			mods = append(mods, "varargs")
		}
		if f&classfile.AccNative != 0 {
			mods = append(mods, "native")
		}
		if f.IsAbstract() {
			mods = append(mods, "abstract")
		}
	} else {
		if f&classfile.AccVolatile != 0 {
			mods = append(mods, "volatile")
		}
		if f&classfile.AccTransient != 0 {
			mods = append(mods, "transient")
		}
		if f.IsEnum() {
			mods = append(mods, "enum")
		}
	}
	if f.IsSynthetic() {
		mods = append(mods, "synthetic")
	}
	if m.Deprecated {
		mods = append(mods, "deprecated")
	}
	return mods
}

func joinOrDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}
