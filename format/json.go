package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/bundlegen/clazz"
	"github.com/dhamidi/bundlegen/descriptors"
)

type JSONEncoder struct {
	w      io.Writer
	report *Report
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) Encode(r *Report) error {
	e.report = r
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(text, '\n'))
	return err
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	return json.MarshalIndent(e.report, "", "  ")
}

type JSONClassEncoder struct {
	w     io.Writer
	class *clazz.Clazz
}

func NewJSONClassEncoder(w io.Writer) *JSONClassEncoder {
	return &JSONClassEncoder{w: w}
}

func (e *JSONClassEncoder) Encode(c *clazz.Clazz) error {
	e.class = c
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(text, '\n'))
	return err
}

func (e *JSONClassEncoder) MarshalText() ([]byte, error) {
	return json.MarshalIndent(e.buildClassData(), "", "  ")
}

type jsonClass struct {
	Name        string       `json:"name"`
	Path        string       `json:"path,omitempty"`
	Package     string       `json:"package"`
	SuperClass  string       `json:"superClass,omitempty"`
	Interfaces  []string     `json:"interfaces,omitempty"`
	Visibility  string       `json:"visibility"`
	Kind        string       `json:"kind"`
	Modifiers   []string     `json:"modifiers,omitempty"`
	Version     jsonVersion  `json:"version"`
	SourceFile  string       `json:"sourceFile,omitempty"`
	Annotations []string     `json:"annotations,omitempty"`
	Fields      []jsonMember `json:"fields,omitempty"`
	Methods     []jsonMember `json:"methods,omitempty"`
	Referred    []string     `json:"referred"`
	ForName     []string     `json:"forName,omitempty"`
}

type jsonVersion struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
}

type jsonMember struct {
	Name       string   `json:"name"`
	Descriptor string   `json:"descriptor"`
	Visibility string   `json:"visibility"`
	Modifiers  []string `json:"modifiers,omitempty"`
}

func (e *JSONClassEncoder) buildClassData() jsonClass {
	c := e.class
	data := jsonClass{
		Name:       c.ClassName.FQN(),
		Path:       c.Path,
		Package:    c.Package().FQN(),
		Interfaces: typeNames(c.Interfaces),
		Visibility: visibility(c.AccessFlags),
		Kind:       classKind(c),
		Modifiers:  classModifiers(c),
		Version: jsonVersion{
			Major: c.MajorVersion,
			Minor: c.MinorVersion,
		},
		SourceFile: c.SourceFile,
		Fields:     buildMembers(c.Fields, false),
		Methods:    buildMembers(c.Methods, true),
		Referred:   names(c.Referred(), true),
		ForName:    typeNames(c.ForName),
	}
	if c.SuperClass != nil {
		data.SuperClass = c.SuperClass.FQN()
	}
	for _, a := range c.Annotations {
		data.Annotations = append(data.Annotations, a.Type.FQN())
	}
	return data
}

func buildMembers(members []clazz.Member, isMethod bool) []jsonMember {
	result := make([]jsonMember, len(members))
	for i, m := range members {
		result[i] = jsonMember{
			Name:       m.Name,
			Descriptor: m.Descriptor.String(),
			Visibility: visibility(m.AccessFlags),
			Modifiers:  memberModifiers(m, isMethod),
		}
	}
	return result
}

func typeNames(refs []*descriptors.TypeRef) []string {
	var out []string
	for _, r := range refs {
		out = append(out, r.FQN())
	}
	return out
}
