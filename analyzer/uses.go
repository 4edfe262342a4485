package analyzer

import (
	"slices"
	"strings"

	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/macro"
	"github.com/dhamidi/bundlegen/packages"
)

// doUses sets the uses: directive of every export to the exported and
// imported packages it refers to. An explicit uses: value acts as a
// template: ${@uses} or <<USES>> stand for the computed list.
func (a *Analyzer) doUses() {
	if a.cfg.NoUses {
		return
	}
	shared := make(map[*descriptors.PackageRef]bool)
	for _, m := range []*packages.Packages{a.imports, a.exports} {
		for _, ref := range m.Keys() {
			shared[a.base(ref)] = true
		}
	}

	for _, ref := range a.exports.Keys() {
		pkg := a.base(ref)
		attrs, _ := a.exports.Get(ref)
		template, ok := attrs.Get(UsesDirective)
		if !ok {
			template = UsesPlaceholder
		}

		var used []string
		for _, p := range a.uses.Get(pkg) {
			if p != pkg && !p.IsJava() && shared[p] {
				used = append(used, p.FQN())
			}
		}
		list := strings.Join(used, ",")

		var value string
		if strings.Contains(template, "$") {
			p := macro.Bind(a.macros, CurrentPackage, pkg.FQN(), CurrentUses, list)
			expanded, err := p.Process(template)
			if err != nil {
				a.warningf("uses: template of %s: %v", pkg, err)
				continue
			}
			value = expanded
		} else {
			value = strings.TrimSpace(strings.ReplaceAll(template, UsesPlaceholder, list))
		}
		value = strings.TrimSuffix(strings.TrimPrefix(value, ","), ",")

		if value == "" {
			attrs.Delete(UsesDirective)
		} else {
			attrs.Set(UsesDirective, value)
		}
	}
}

// checkPrivateReferences warns about exports that refer to packages the
// bundle keeps private.
func (a *Analyzer) checkPrivateReferences() {
	for _, ref := range a.exports.Keys() {
		pkg := a.base(ref)
		var private []string
		for _, p := range a.uses.Get(pkg) {
			if a.contained.Contains(p) && !a.exports.Contains(p) && !p.IsJava() {
				private = append(private, p.FQN())
			}
		}
		if len(private) > 0 {
			a.warningf("export %s has %d private references: %s", pkg, len(private), strings.Join(private, ", "))
		}
	}
}

// cleanupVersions normalizes version attributes. A value that stays
// invalid is kept as written and reported.
func (a *Analyzer) cleanupVersions() {
	a.cleanupMap(a.exports, a.grammar.Valid)
	a.cleanupMap(a.imports, a.grammar.ValidRange)
}

func (a *Analyzer) cleanupMap(m *packages.Packages, valid func(string) bool) {
	for _, ref := range m.Keys() {
		attrs, _ := m.Get(ref)
		attrs.Delete(ProvideDirective)
		v, ok := attrs.Get(VersionAttribute)
		if !ok {
			continue
		}
		cleaned := a.grammar.Cleanup(v)
		if !valid(cleaned) {
			a.warning(&MalformedVersionError{Package: a.base(ref).FQN(), Version: v})
			continue
		}
		if cleaned != v {
			log.Debugf("%s: version %q cleaned to %q", ref, v, cleaned)
			attrs.Set(VersionAttribute, cleaned)
		}
	}
}

// computeUnreachable returns the contained packages that neither an export
// nor the activator reaches through the uses graph.
func (a *Analyzer) computeUnreachable() []*descriptors.PackageRef {
	var roots []*descriptors.PackageRef
	for _, ref := range a.exports.Keys() {
		roots = append(roots, a.base(ref))
	}
	if a.activator != nil {
		roots = append(roots, a.activator.Package())
	}
	reached := a.uses.Reachable(roots...)

	var out []*descriptors.PackageRef
	for _, p := range a.uses.Keys() {
		if !reached[p] {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, (*descriptors.PackageRef).Compare)
	return out
}
