package classfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dhamidi/bundlegen/internal/classtest"
)

func TestParseClassFile(t *testing.T) {
	b := classtest.New("com/acme/Widget").Implements("java/lang/Runnable")
	b.Field(classtest.AccPrivate, "count", "I")
	b.Method(classtest.AccPublic, "run", "()V", b.Code(classtest.Return()))
	b.Attribute(b.SourceFile("Widget.java"))

	cf, err := Parse(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("Failed to parse class file: %v", err)
	}

	t.Run("class name", func(t *testing.T) {
		if got := cf.ClassName(); got != "com/acme/Widget" {
			t.Errorf("ClassName() = %q, want %q", got, "com/acme/Widget")
		}
	})

	t.Run("super class", func(t *testing.T) {
		if got := cf.SuperClassName(); got != "java/lang/Object" {
			t.Errorf("SuperClassName() = %q, want %q", got, "java/lang/Object")
		}
	})

	t.Run("interfaces", func(t *testing.T) {
		interfaces := cf.InterfaceNames()
		if len(interfaces) != 1 || interfaces[0] != "java/lang/Runnable" {
			t.Errorf("InterfaceNames() = %v, want [java/lang/Runnable]", interfaces)
		}
	})

	t.Run("version", func(t *testing.T) {
		if cf.MajorVersion != 52 || cf.MinorVersion != 0 {
			t.Errorf("version = %d.%d, want 52.0", cf.MajorVersion, cf.MinorVersion)
		}
	})

	t.Run("members", func(t *testing.T) {
		field := cf.GetField("count")
		if field == nil {
			t.Fatal("Expected field count")
		}
		if got := field.Descriptor(cf.ConstantPool); got != "I" {
			t.Errorf("field descriptor = %q, want I", got)
		}
		if !field.AccessFlags.IsPrivate() {
			t.Error("Expected field to be private")
		}

		method := cf.GetMethod("run", "()V")
		if method == nil {
			t.Fatal("Expected method run()V")
		}
		code := method.Code()
		if code == nil {
			t.Fatal("Expected Code attribute")
		}
		if !bytes.Equal(code.Code, []byte{0xb1}) {
			t.Errorf("code = %x, want b1", code.Code)
		}
	})

	t.Run("source file", func(t *testing.T) {
		attr := cf.GetAttribute("SourceFile")
		if attr == nil {
			t.Fatal("Expected SourceFile attribute")
		}
		sf, ok := attr.Parsed.(*SourceFileAttribute)
		if !ok {
			t.Fatalf("Parsed = %T, want *SourceFileAttribute", attr.Parsed)
		}
		if got := cf.ConstantPool.GetUtf8(sf.SourceFileIndex); got != "Widget.java" {
			t.Errorf("source file = %q, want Widget.java", got)
		}
	})

	t.Run("reset", func(t *testing.T) {
		cf.Reset()
		if cf.ConstantPool != nil || cf.Methods != nil {
			t.Error("Expected Reset to drop the pool and members")
		}
	})
}

func TestParseWideConstants(t *testing.T) {
	b := classtest.New("a/Wide")
	longIdx := b.Long(1 << 40)
	doubleIdx := b.Double(2.5)
	after := b.Utf8("after")

	cf, err := Parse(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("Failed to parse class file: %v", err)
	}

	if v, ok := cf.ConstantPool.GetConstant(longIdx); !ok || v != int64(1<<40) {
		t.Errorf("long constant = %v, %v", v, ok)
	}
	if v, ok := cf.ConstantPool.GetConstant(doubleIdx); !ok || v != 2.5 {
		t.Errorf("double constant = %v, %v", v, ok)
	}
	if cf.ConstantPool.Entry(longIdx+1) != nil {
		t.Error("Expected the slot after a long to be empty")
	}
	if got := cf.ConstantPool.GetUtf8(after); got != "after" {
		t.Errorf("entry after wide constants = %q, want %q", got, "after")
	}
}

func TestParseAnnotations(t *testing.T) {
	b := classtest.New("a/package-info").Access(classtest.AccInterface | classtest.AccAbstract | classtest.AccSynthetic)
	b.Attribute(b.Annotations(false, classtest.Annotation{
		Type:     "Lorg/osgi/annotation/versioning/Version;",
		Elements: []classtest.Element{{Name: "value", Tag: 's', String: "1.2.3"}},
	}))

	cf, err := Parse(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("Failed to parse class file: %v", err)
	}

	attr := cf.GetAttribute("RuntimeInvisibleAnnotations")
	if attr == nil {
		t.Fatal("Expected RuntimeInvisibleAnnotations")
	}
	anns := attr.Parsed.(*AnnotationsAttribute)
	if anns.Visible {
		t.Error("Expected invisible annotations")
	}
	if len(anns.Annotations) != 1 {
		t.Fatalf("Expected 1 annotation, got %d", len(anns.Annotations))
	}
	ann := anns.Annotations[0]
	if got := cf.ConstantPool.GetUtf8(ann.TypeIndex); got != "Lorg/osgi/annotation/versioning/Version;" {
		t.Errorf("annotation type = %q", got)
	}
	if len(ann.Pairs) != 1 || ann.Pairs[0].Value.Tag != 's' {
		t.Fatalf("unexpected pairs %+v", ann.Pairs)
	}
	if got := cf.ConstantPool.GetUtf8(ann.Pairs[0].Value.ConstIndex); got != "1.2.3" {
		t.Errorf("value = %q, want 1.2.3", got)
	}
}

func TestParseInvalid(t *testing.T) {
	valid := classtest.New("a/A").Bytes()

	withTag := func(tag byte) []byte {
		b := classtest.New("a/A")
		b.Raw(tag, 0, 0)
		return b.Bytes()
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte{0xCA, 0xFE, 0xBA, 0xBF}, valid[4:]...)},
		{"truncated version", valid[:6]},
		{"truncated pool count", valid[:9]},
		{"truncated pool", valid[:14]},
		{"zero pool count", append(append([]byte{}, valid[:8]...), 0, 0)},
		{"tag 2", withTag(2)},
		{"tag 0", withTag(0)},
		{"unknown tag", withTag(99)},
		{"truncated attributes", valid[:len(valid)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(bytes.NewReader(tt.data))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !errors.Is(err, ErrInvalidClassFile) {
				t.Errorf("error %v does not wrap ErrInvalidClassFile", err)
			}
		})
	}
}

func TestDecodeModifiedUtf8(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"ascii", []byte("hello"), "hello"},
		{"encoded nul", []byte{0xC0, 0x80}, "\x00"},
		{"two byte", []byte{0xC3, 0xA9}, "é"},
		{"surrogate pair", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}, "\U0001F600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeModifiedUtf8(tt.in); got != tt.want {
				t.Errorf("decodeModifiedUtf8(%x) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
