package instruction

import (
	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/packages"
)

// Selection is the outcome of SelectAndConsume.
type Selection struct {
	Selected *packages.Packages
	// Unmatched lists instructions that matched nothing and were neither
	// negated, optional, literal nor the lone "*".
	Unmatched []*Instruction
	// Injected lists literal instructions added without a matching candidate.
	Injected []*Instruction
}

// SelectAndConsume assigns every candidate package to the first instruction
// that matches it. A candidate matched once is never offered to a later
// instruction; a negated match drops it. Candidates are visited in name
// order and metadata packages are ignored. The attributes of the selected
// entry are the candidate's overridden by the instruction's.
func SelectAndConsume(d *descriptors.Descriptors, ins *Instructions, candidates *packages.Packages) Selection {
	sel := Selection{Selected: packages.New()}
	refs := candidates.Sorted()

	var unmatched []*Instruction
	for _, in := range ins.List() {
		matched := false
		remaining := refs[:0:0]
		for _, ref := range refs {
			if ref.IsMetaData() {
				continue
			}
			if !in.Matches(ref.FQN()) {
				remaining = append(remaining, ref)
				continue
			}
			matched = true
			if !in.IsNegated() {
				attrs, _ := candidates.Get(ref)
				sel.Selected.Merge(ref, in.IsDuplicate(), attrs.Clone(), ins.Attrs(in).Clone())
			}
		}
		refs = remaining
		if !matched && !in.IsAny() {
			unmatched = append(unmatched, in)
		}
	}

	for _, in := range unmatched {
		switch {
		case in.IsLiteral() && !in.IsNegated():
			ref := d.PackageRefFromFQN(in.Literal())
			sel.Selected.Merge(ref, true, ins.Attrs(in).Clone())
			sel.Injected = append(sel.Injected, in)
		case in.IsNegated(), in.IsOptional():
		default:
			sel.Unmatched = append(sel.Unmatched, in)
		}
	}
	return sel
}
