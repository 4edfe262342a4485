package format

import (
	"strings"

	"github.com/dhamidi/bundlegen/analyzer"
	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/packages"
)

// Report is the serializable outcome of an analysis. Package lists are
// sorted by name; java.* packages are left out of contained and referred.
type Report struct {
	Bundle      string              `json:"bundle"`
	Classes     int                 `json:"classes"`
	Activator   string              `json:"activator,omitempty"`
	Exports     []Package           `json:"exports"`
	Imports     []Package           `json:"imports"`
	Privates    []string            `json:"privates"`
	Contained   []string            `json:"contained"`
	Referred    []string            `json:"referred"`
	Uses        map[string][]string `json:"uses"`
	Unreachable []string            `json:"unreachable,omitempty"`
	Errors      []string            `json:"errors,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// Package is one clause of Export-Package or Import-Package. Attributes
// starting with '-' are internal and not reported.
type Package struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`

	clause string
}

// Clause renders the package as a manifest header clause.
func (p Package) Clause() string {
	if p.clause == "" {
		return p.Name
	}
	return p.clause
}

// NewReport collects the results of an analysis that has run.
func NewReport(name string, a *analyzer.Analyzer) *Report {
	r := &Report{
		Bundle:      name,
		Classes:     len(a.Classes()),
		Exports:     packageList(a.Exports()),
		Imports:     packageList(a.Imports()),
		Privates:    names(a.Privates().Sorted(), true),
		Contained:   names(a.Contained().Sorted(), false),
		Referred:    names(a.Referred().Sorted(), false),
		Uses:        make(map[string][]string),
		Unreachable: names(a.Unreachable(), true),
	}
	if act := a.Activator(); act != nil {
		r.Activator = act.FQN()
	}
	for _, p := range a.Uses().Keys() {
		r.Uses[p.FQN()] = names(a.Uses().Get(p), false)
	}
	for _, err := range a.Errors() {
		r.Errors = append(r.Errors, err.Error())
	}
	for _, err := range a.Warnings() {
		r.Warnings = append(r.Warnings, err.Error())
	}
	return r
}

func packageList(m *packages.Packages) []Package {
	out := []Package{}
	for _, ref := range m.Sorted() {
		attrs, _ := m.Get(ref)
		name := descriptors.StripDuplicateMarker(ref.FQN())
		p := Package{Name: name, clause: name + attrs.String()}
		for _, k := range attrs.Keys() {
			if strings.HasPrefix(k, "-") {
				continue
			}
			if p.Attributes == nil {
				p.Attributes = make(map[string]string)
			}
			p.Attributes[k] = attrs.Value(k)
		}
		out = append(out, p)
	}
	return out
}

func names(refs []*descriptors.PackageRef, withJava bool) []string {
	out := []string{}
	for _, ref := range refs {
		if ref.IsJava() && !withJava {
			continue
		}
		out = append(out, ref.FQN())
	}
	return out
}

func clauses(ps []Package) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Clause()
	}
	return strings.Join(parts, ",")
}
