package analyzer

import (
	"fmt"
	"strings"

	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/header"
	"github.com/dhamidi/bundlegen/instruction"
	"github.com/dhamidi/bundlegen/packages"
)

func (a *Analyzer) merge() error {
	exportIns, err := instruction.Parse(a.cfg.ExportPackage)
	if err != nil {
		return fmt.Errorf("invalid Export-Package: %w", err)
	}
	importHeader := a.cfg.ImportPackage
	if strings.TrimSpace(importHeader) == "" {
		importHeader = "*"
	}
	importIns, err := instruction.Parse(importHeader)
	if err != nil {
		return fmt.Errorf("invalid Import-Package: %w", err)
	}

	a.exports = a.selectPackages("Export-Package", exportIns, a.contained)
	if def := a.d.DefaultPackage(); a.exports.Contains(def) {
		a.warningf("cannot export the default package")
		a.exports.Delete(def)
	}

	candidates := a.referred.Clone()
	toImport := a.exportsToImports()
	for _, ref := range toImport.Keys() {
		attrs, _ := toImport.Get(ref)
		candidates.Put(ref, attrs)
	}
	if err := a.removeDynamicImports(candidates); err != nil {
		return err
	}
	for _, ref := range candidates.Keys() {
		if ref.IsJava() {
			candidates.Delete(ref)
		}
	}
	a.imports = a.selectPackages("Import-Package", importIns, candidates)

	return a.selectPrivates()
}

// selectPackages runs the instructions over the candidates and reports the
// instructions that selected nothing.
func (a *Analyzer) selectPackages(name string, ins *instruction.Instructions, candidates *packages.Packages) *packages.Packages {
	sel := instruction.SelectAndConsume(a.d, ins, candidates)
	for _, in := range sel.Unmatched {
		a.unmatched(name, in.Input())
	}
	for _, in := range sel.Injected {
		log.Debugf("%s: %s injected without a matching package", name, in.Literal())
	}
	return sel.Selected
}

// exportsToImports picks the exports that private code refers to; those are
// imported as well so the bundle can be substituted. Exports that
// themselves use private packages, or that carry -noimport:=true, stay
// export-only.
func (a *Analyzer) exportsToImports() *packages.Packages {
	private := make(map[*descriptors.PackageRef]bool)
	for _, ref := range a.contained.Keys() {
		if !a.exports.Contains(ref) {
			private[ref] = true
		}
	}
	referencedByPrivate := make(map[*descriptors.PackageRef]bool)
	for ref := range private {
		for _, used := range a.uses.Get(ref) {
			referencedByPrivate[used] = true
		}
	}

	result := packages.New()
next:
	for _, ref := range a.exports.Keys() {
		if !referencedByPrivate[ref] {
			continue
		}
		for _, used := range a.uses.Get(ref) {
			if private[used] {
				continue next
			}
		}
		attrs, _ := a.exports.Get(ref)
		if strings.EqualFold(attrs.Value(NoImportDirective), "true") {
			continue
		}
		result.Put(ref, header.NewAttrs())
	}
	return result
}

// removeDynamicImports drops candidates that DynamicImport-Package covers.
func (a *Analyzer) removeDynamicImports(candidates *packages.Packages) error {
	ins, err := instruction.Parse(a.cfg.DynamicImportPackage)
	if err != nil {
		return fmt.Errorf("invalid DynamicImport-Package: %w", err)
	}
	for _, in := range ins.List() {
		if in.IsNegated() {
			continue
		}
		for _, ref := range candidates.Keys() {
			if in.Matches(ref.FQN()) {
				candidates.Delete(ref)
			}
		}
	}
	return nil
}

// selectPrivates computes the contained packages that are not exported,
// narrowed by Private-Package when it is set.
func (a *Analyzer) selectPrivates() error {
	rest := packages.New()
	for _, ref := range a.contained.Keys() {
		if !a.exports.Contains(ref) {
			attrs, _ := a.contained.Get(ref)
			rest.Put(ref, attrs.Clone())
		}
	}
	if strings.TrimSpace(a.cfg.PrivatePackage) == "" {
		a.privates = rest
		return nil
	}
	ins, err := instruction.Parse(a.cfg.PrivatePackage)
	if err != nil {
		return fmt.Errorf("invalid Private-Package: %w", err)
	}
	a.privates = a.selectPackages("Private-Package", ins, rest)
	for _, ref := range a.privates.Keys() {
		if !rest.Contains(ref) {
			a.warningf("Private-Package %s is not a contained, unexported package", ref)
			a.privates.Delete(ref)
		}
	}
	return nil
}
