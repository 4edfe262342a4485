package analyzer

import (
	"strings"

	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/header"
	"github.com/dhamidi/bundlegen/instruction"
	"github.com/dhamidi/bundlegen/macro"
	"github.com/dhamidi/bundlegen/version"
)

// base maps a duplicate ref back to the interned package.
func (a *Analyzer) base(ref *descriptors.PackageRef) *descriptors.PackageRef {
	if !ref.IsDuplicate() {
		return ref
	}
	return a.d.PackageRefFromFQN(descriptors.StripDuplicateMarker(ref.FQN()))
}

// augmentExports fills in what the classpath knows about exported packages
// and expands macros in the attribute values.
func (a *Analyzer) augmentExports() {
	for _, ref := range a.exports.Keys() {
		attrs, _ := a.exports.Get(ref)
		if cp, ok := a.classpathExports.Get(a.base(ref)); ok {
			attrs.MergeMissing(cp)
		}
		fixupSpecificationVersion(attrs)
		a.fixupAttributes(ref, attrs)
		a.removeAttributes(attrs)
	}
}

// augmentImports applies the version policy to every import whose exporter
// has a version and copies the exporter's mandatory attributes.
func (a *Analyzer) augmentImports() {
	provided := a.findProvidedPackages()
	var noRange []string

	for _, ref := range a.imports.Keys() {
		pkg := a.base(ref)
		imp, _ := a.imports.Get(ref)
		exp, found := a.exports.Get(pkg)
		if !found {
			exp, found = a.classpathExports.Get(pkg)
		}
		if a.cfg.Pedantic && found && !a.exports.Contains(pkg) && !exp.Has(ExportedDirective) {
			a.warningf("%s is a private package import from %s", pkg, exp.Value(SourceDirective))
		}

		if ev := exp.Value(VersionAttribute); ev != "" {
			provider := provided[pkg]
			if v, ok := imp.Get(ProvideDirective); ok {
				provider = isTrue(v)
			} else if v, ok := exp.Get(ProvideDirective); ok {
				provider = isTrue(v)
			}
			rng, err := a.applyVersionPolicy(ev, imp.Value(VersionAttribute), provider)
			if err != nil {
				a.warningf("version policy for %s: %v", pkg, err)
			} else if strings.TrimSpace(rng) != "" {
				imp.Set(VersionAttribute, rng)
			}
		}
		imp.Delete(ProvideDirective)

		if mandatory := exp.Value(MandatoryDirective); mandatory != "" {
			for _, key := range strings.Split(mandatory, ",") {
				key = strings.TrimSpace(key)
				if key != "" && !imp.Has(key) {
					imp.Set(key, exp.Value(key))
				}
			}
		}
		if v, ok := exp.Get(ImportDirective); ok {
			imp.Set(ImportDirective, v)
		}

		a.fixupAttributes(ref, imp)
		a.removeAttributes(imp)
		if !a.grammar.ValidRange(imp.Value(VersionAttribute)) {
			noRange = append(noRange, pkg.FQN())
		}
	}

	if a.cfg.Pedantic && len(noRange) > 0 {
		a.warningf("imports that lack version ranges: %s", strings.Join(noRange, ", "))
	}
}

// applyVersionPolicy computes the import range for an exporter at
// exportVersion. An explicit import range may refer to the exporter's
// version as ${@}.
func (a *Analyzer) applyVersionPolicy(exportVersion, importRange string, provider bool) (string, error) {
	ev := a.grammar.Cleanup(exportVersion)
	p := macro.Bind(a.macros, CurrentVersion, ev)
	if importRange != "" {
		return p.Process(a.grammar.Cleanup(importRange))
	}

	policy := a.cfg.VersionPolicy
	if provider {
		policy = a.cfg.ProviderPolicy
	}
	if policy != "" {
		return p.Process(policy)
	}
	v, err := version.Parse(ev)
	if err != nil {
		return "", err
	}
	if provider {
		return version.ProviderRange(v), nil
	}
	return version.ConsumerRange(v), nil
}

// findProvidedPackages finds the packages of interfaces that bundle classes
// implement and that are marked as provider types. Importers of those
// packages get the provider policy.
func (a *Analyzer) findProvidedPackages() map[*descriptors.PackageRef]bool {
	provided := make(map[*descriptors.PackageRef]bool)
	seen := make(map[*descriptors.TypeRef]bool)
	for _, c := range a.Classes() {
		for _, iface := range c.Interfaces {
			if seen[iface] || iface.Package() == c.Package() {
				continue
			}
			seen[iface] = true
			ic, err := a.FindClass(iface)
			if err != nil {
				log.Debugf("provider check for %s: %s", iface, err)
				continue
			}
			if ic == nil {
				continue
			}
			if _, ok := ic.Annotation(providerTypeAnnotation); ok {
				provided[iface.Package()] = true
			}
		}
	}
	return provided
}

// fixupAttributes expands macros in attribute values with @package bound.
func (a *Analyzer) fixupAttributes(ref *descriptors.PackageRef, attrs *header.Attrs) {
	var p macro.Processor
	for _, key := range attrs.Keys() {
		v := attrs.Value(key)
		if !strings.Contains(v, "$") {
			continue
		}
		if p == nil {
			p = macro.Bind(a.macros, CurrentPackage, a.base(ref).FQN())
		}
		expanded, err := p.Process(v)
		if err != nil {
			a.warningf("attribute %s of %s: %v", key, ref, err)
			continue
		}
		attrs.Set(key, expanded)
	}
}

// removeAttributes drops attributes set to "!" and those matched by the
// -remove-attribute: directive.
func (a *Analyzer) removeAttributes(attrs *header.Attrs) {
	if remove, ok := attrs.Get(RemoveAttributeDirective); ok {
		attrs.Delete(RemoveAttributeDirective)
		ins, err := instruction.Parse(remove)
		if err != nil {
			a.warningf("invalid %s %q: %v", RemoveAttributeDirective, remove, err)
		} else {
			for _, key := range attrs.Keys() {
				if ins.Matches(key) {
					attrs.Delete(key)
				}
			}
		}
	}
	for _, key := range attrs.Keys() {
		if attrs.Value(key) == "!" {
			attrs.Delete(key)
		}
	}
}

func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
