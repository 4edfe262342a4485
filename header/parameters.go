package header

import (
	"fmt"
	"strings"

	"github.com/dhamidi/bundlegen/descriptors"
)

type Clause struct {
	Name  string
	Attrs *Attrs
}

// Parameters is an ordered list of clauses. A name repeated in one header is
// kept with the duplicate marker appended so both attribute sets survive.
type Parameters struct {
	clauses []Clause
	index   map[string]int
}

func (p *Parameters) Len() int { return len(p.clauses) }

func (p *Parameters) Clauses() []Clause {
	return append([]Clause(nil), p.clauses...)
}

func (p *Parameters) Names() []string {
	names := make([]string, len(p.clauses))
	for i, c := range p.clauses {
		names[i] = c.Name
	}
	return names
}

func (p *Parameters) Get(name string) (*Attrs, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.clauses[i].Attrs, true
}

// Add appends a clause and returns the name it was stored under.
func (p *Parameters) Add(name string, attrs *Attrs) string {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if attrs == nil {
		attrs = NewAttrs()
	}
	for {
		if _, exists := p.index[name]; !exists {
			break
		}
		name += descriptors.DuplicateMarker
	}
	p.index[name] = len(p.clauses)
	p.clauses = append(p.clauses, Clause{Name: name, Attrs: attrs})
	return name
}

// String renders the clauses as a header value, duplicate markers removed.
func (p *Parameters) String() string {
	parts := make([]string, 0, len(p.clauses))
	for _, c := range p.clauses {
		parts = append(parts, descriptors.StripDuplicateMarker(c.Name)+c.Attrs.String())
	}
	return strings.Join(parts, ",")
}

// Parse splits a header value into clauses. Several names may share one set
// of attributes ("a;b;version=1"); values may be quoted with escapes.
func Parse(value string) (Parameters, error) {
	var p Parameters
	clauses, err := split(value, ',')
	if err != nil {
		return p, err
	}
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		parts, err := split(clause, ';')
		if err != nil {
			return p, err
		}
		var names []string
		attrs := NewAttrs()
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			eq := indexUnquoted(part, '=')
			if eq < 0 {
				if attrs.Len() > 0 {
					return p, fmt.Errorf("failed to parse clause %q: name %q after attributes", clause, part)
				}
				names = append(names, part)
				continue
			}
			key := strings.TrimSpace(part[:eq])
			if !IsDirective(key) {
				// typed attributes (version:Version=1.0) keep only the name
				key, _, _ = strings.Cut(key, ":")
			}
			if key == "" || key == ":" {
				return p, fmt.Errorf("failed to parse clause %q: empty attribute key", clause)
			}
			v, err := unquote(strings.TrimSpace(part[eq+1:]))
			if err != nil {
				return p, fmt.Errorf("failed to parse clause %q: %w", clause, err)
			}
			attrs.Set(key, v)
		}
		if len(names) == 0 {
			return p, fmt.Errorf("failed to parse clause %q: no name", clause)
		}
		for _, name := range names {
			p.Add(name, attrs.Clone())
		}
	}
	return p, nil
}

func split(s string, sep byte) ([]string, error) {
	var parts []string
	start := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("failed to parse %q: unterminated quote", s)
	}
	return append(parts, s[start:]), nil
}

func indexUnquoted(s string, c byte) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch {
		case quote != 0:
			if s[i] == '\\' {
				i++
			} else if s[i] == quote {
				quote = 0
			}
		case s[i] == '"' || s[i] == '\'':
			quote = s[i]
		case s[i] == c:
			return i
		}
	}
	return -1
}

func unquote(v string) (string, error) {
	if len(v) == 0 || (v[0] != '"' && v[0] != '\'') {
		return v, nil
	}
	q := v[0]
	if len(v) < 2 || v[len(v)-1] != q {
		return "", fmt.Errorf("unterminated quoted value %s", v)
	}
	var sb strings.Builder
	body := v[1 : len(v)-1]
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		sb.WriteByte(body[i])
	}
	return sb.String(), nil
}
