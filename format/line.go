package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/bundlegen/clazz"
)

// LineEncoder writes one tab-separated record per fact:
//
//	export	<package>	<attributes>
//	import	<package>	<attributes>
//	private	<package>
//	uses	<package>	<used,...>
//	unreachable	<package>
//	error	<message>
//	warning	<message>
type LineEncoder struct {
	w      io.Writer
	report *Report
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

func (e *LineEncoder) Encode(r *Report) error {
	e.report = r
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *LineEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	r := e.report

	for _, p := range r.Exports {
		fmt.Fprintf(&sb, "export\t%s\t%s\n", p.Name, attributesStr(p))
	}
	for _, p := range r.Imports {
		fmt.Fprintf(&sb, "import\t%s\t%s\n", p.Name, attributesStr(p))
	}
	for _, p := range r.Privates {
		fmt.Fprintf(&sb, "private\t%s\n", p)
	}
	for _, p := range r.Contained {
		if used := r.Uses[p]; len(used) > 0 {
			fmt.Fprintf(&sb, "uses\t%s\t%s\n", p, strings.Join(used, ","))
		}
	}
	for _, p := range r.Unreachable {
		fmt.Fprintf(&sb, "unreachable\t%s\n", p)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(&sb, "error\t%s\n", msg)
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(&sb, "warning\t%s\n", msg)
	}

	return []byte(sb.String()), nil
}

func attributesStr(p Package) string {
	attrs := strings.TrimPrefix(strings.TrimPrefix(p.Clause(), p.Name), ";")
	if attrs == "" {
		return "-"
	}
	return attrs
}

// LineClassEncoder writes a class header line followed by one line per
// field and method.
type LineClassEncoder struct {
	w     io.Writer
	class *clazz.Clazz
}

func NewLineClassEncoder(w io.Writer) *LineClassEncoder {
	return &LineClassEncoder{w: w}
}

func (e *LineClassEncoder) Encode(c *clazz.Clazz) error {
	e.class = c
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *LineClassEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	c := e.class

	mods := append([]string{visibility(c.AccessFlags)}, classModifiers(c)...)
	fmt.Fprintf(&sb, "%s\t%s\t%s\n", classKind(c), c.ClassName.FQN(), strings.Join(mods, ","))

	for _, f := range c.Fields {
		fmt.Fprintf(&sb, "field\t%s\t%s\t%s\t%s\n",
			f.Name,
			f.Descriptor.Type().FQN(),
			visibility(f.AccessFlags),
			joinOrDash(memberModifiers(f, false)),
		)
	}

	for _, m := range c.Methods {
		var params []string
		for _, p := range m.Descriptor.Prototype() {
			params = append(params, p.FQN())
		}
		fmt.Fprintf(&sb, "method\t%s\t%s\t%s\t%s\t%s\n",
			m.Name,
			m.Descriptor.Type().FQN(),
			joinOrDash(params),
			visibility(m.AccessFlags),
			joinOrDash(memberModifiers(m, true)),
		)
	}

	fmt.Fprintf(&sb, "referred\t%s\n", joinOrDash(names(c.Referred(), true)))

	return []byte(sb.String()), nil
}
