// Package instruction compiles packaging instructions such as "com.foo.*" or
// "!com.foo.internal" into matchers and selects packages with them.
package instruction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/header"
)

// Instruction is one compiled wildcard clause.
type Instruction struct {
	input           string
	match           string
	pattern         *regexp.Regexp
	negated         bool
	literal         bool
	duplicate       bool
	optional        bool
	caseInsensitive bool
	any             bool
}

// Compile turns a clause name into an Instruction. Leading '!' negates, a
// leading '=' forces a literal, a trailing ":i" ignores case and a trailing
// duplicate marker is stripped. In patterns '*' matches any run, '?' a single
// character, and a trailing ".*" also matches the bare prefix.
func Compile(clause string) (*Instruction, error) {
	in := &Instruction{input: clause}
	s := descriptors.StripDuplicateMarker(strings.TrimSpace(clause))
	in.duplicate = s != strings.TrimSpace(clause)

	if strings.HasPrefix(s, "!") {
		in.negated = true
		s = s[1:]
	}
	if strings.HasSuffix(s, ":i") {
		in.caseInsensitive = true
		s = strings.TrimSuffix(s, ":i")
	}
	if strings.HasPrefix(s, "=") {
		in.literal = true
		in.match = s[1:]
		return in, nil
	}
	if s == "" {
		return nil, fmt.Errorf("failed to compile instruction %q: empty pattern", clause)
	}

	var sb strings.Builder
	wildcards := false
loop:
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '.':
			if i == len(s)-2 && s[i+1] == '*' {
				sb.WriteString(`(\..*)?`)
				wildcards = true
				break loop
			}
			sb.WriteString(`\.`)
		case '*':
			sb.WriteString(".*")
			wildcards = true
		case '?':
			sb.WriteByte('.')
			wildcards = true
		case '|':
			sb.WriteByte('|')
			wildcards = true
		case '$':
			sb.WriteString(`\$`)
		default:
			sb.WriteByte(c)
		}
	}

	in.match = s
	if !wildcards {
		in.literal = true
		return in, nil
	}
	in.any = s == "*"

	expr := "^(?:" + sb.String() + ")$"
	if in.caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile instruction %q: %w", clause, err)
	}
	in.pattern = re
	return in, nil
}

// MustCompile is Compile for patterns known to be valid.
func MustCompile(clause string) *Instruction {
	in, err := Compile(clause)
	if err != nil {
		panic(err)
	}
	return in
}

// Matches reports whether name matches the pattern, regardless of negation.
func (in *Instruction) Matches(name string) bool {
	if in.literal {
		if in.caseInsensitive {
			return strings.EqualFold(in.match, name)
		}
		return in.match == name
	}
	return in.pattern.MatchString(name)
}

func (in *Instruction) Input() string { return in.input }

// Literal is the pattern text without markers; for literal instructions it
// is the exact name.
func (in *Instruction) Literal() string { return in.match }

func (in *Instruction) IsNegated() bool         { return in.negated }
func (in *Instruction) IsLiteral() bool         { return in.literal }
func (in *Instruction) IsDuplicate() bool       { return in.duplicate }
func (in *Instruction) IsOptional() bool        { return in.optional }
func (in *Instruction) IsCaseInsensitive() bool { return in.caseInsensitive }
func (in *Instruction) IsAny() bool             { return in.any }

func (in *Instruction) String() string { return in.input }

// Instructions is an ordered set of instructions with their clause attributes.
type Instructions struct {
	list  []*Instruction
	attrs map[*Instruction]*header.Attrs
}

// New compiles every clause of a parsed header. A clause with
// resolution:=optional yields an optional instruction.
func New(p header.Parameters) (*Instructions, error) {
	ins := &Instructions{attrs: make(map[*Instruction]*header.Attrs)}
	for _, c := range p.Clauses() {
		in, err := Compile(c.Name)
		if err != nil {
			return nil, err
		}
		in.optional = c.Attrs.Value("resolution:") == "optional"
		ins.list = append(ins.list, in)
		ins.attrs[in] = c.Attrs
	}
	return ins, nil
}

// Parse parses a header value and compiles its clauses.
func Parse(value string) (*Instructions, error) {
	p, err := header.Parse(value)
	if err != nil {
		return nil, err
	}
	return New(p)
}

func (ins *Instructions) Len() int {
	if ins == nil {
		return 0
	}
	return len(ins.list)
}

func (ins *Instructions) List() []*Instruction {
	if ins == nil {
		return nil
	}
	return append([]*Instruction(nil), ins.list...)
}

func (ins *Instructions) Attrs(in *Instruction) *header.Attrs {
	return ins.attrs[in]
}

// Matcher returns the first instruction matching name, or nil.
func (ins *Instructions) Matcher(name string) *Instruction {
	for _, in := range ins.List() {
		if in.Matches(name) {
			return in
		}
	}
	return nil
}

// Matches reports whether name is selected: the first matching instruction
// must not be negated.
func (ins *Instructions) Matches(name string) bool {
	in := ins.Matcher(name)
	return in != nil && !in.IsNegated()
}
