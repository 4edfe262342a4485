package clazz

import (
	"fmt"
	"strings"

	"github.com/dhamidi/bundlegen/descriptors"
)

const maxSignatureDepth = 64

// scanSignature walks a generic signature (class, method or field) and calls
// emit with the binary name of every class type it mentions.
func scanSignature(sig string, emit func(binary string)) error {
	s := &sigScanner{s: sig, emit: emit}
	if err := s.signature(); err != nil {
		return fmt.Errorf("%w: signature %q: %v", descriptors.ErrMalformedDescriptor, sig, err)
	}
	return nil
}

type sigScanner struct {
	s     string
	pos   int
	depth int
	emit  func(string)
}

func (p *sigScanner) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *sigScanner) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("expected %q at %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *sigScanner) signature() error {
	if p.peek() == '<' {
		if err := p.formalTypeParameters(); err != nil {
			return err
		}
	}
	if p.peek() == '(' {
		return p.method()
	}
	if p.pos >= len(p.s) {
		return fmt.Errorf("empty signature")
	}
	for p.pos < len(p.s) {
		if err := p.typeSignature(); err != nil {
			return err
		}
	}
	return nil
}

func (p *sigScanner) formalTypeParameters() error {
	p.pos++
	for p.peek() != '>' {
		end := strings.IndexByte(p.s[p.pos:], ':')
		if end <= 0 {
			return fmt.Errorf("bad type parameter at %d", p.pos)
		}
		p.pos += end + 1
		if c := p.peek(); c != ':' && c != '>' {
			if err := p.typeSignature(); err != nil {
				return err
			}
		}
		for p.peek() == ':' {
			p.pos++
			if err := p.typeSignature(); err != nil {
				return err
			}
		}
		if p.pos >= len(p.s) {
			return fmt.Errorf("unterminated type parameters")
		}
	}
	p.pos++
	return nil
}

func (p *sigScanner) method() error {
	p.pos++
	for p.peek() != ')' {
		if p.pos >= len(p.s) {
			return fmt.Errorf("unterminated parameter list")
		}
		if err := p.typeSignature(); err != nil {
			return err
		}
	}
	p.pos++
	if err := p.typeSignature(); err != nil {
		return err
	}
	for p.peek() == '^' {
		p.pos++
		if err := p.typeSignature(); err != nil {
			return err
		}
	}
	if p.pos != len(p.s) {
		return fmt.Errorf("trailing data at %d", p.pos)
	}
	return nil
}

func (p *sigScanner) typeSignature() error {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxSignatureDepth {
		return fmt.Errorf("nesting deeper than %d", maxSignatureDepth)
	}

	switch c := p.peek(); c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		p.pos++
		return nil
	case '[':
		p.pos++
		return p.typeSignature()
	case 'T':
		end := strings.IndexByte(p.s[p.pos:], ';')
		if end < 2 {
			return fmt.Errorf("bad type variable at %d", p.pos)
		}
		p.pos += end + 1
		return nil
	case 'L':
		return p.classType()
	default:
		return fmt.Errorf("unexpected %q at %d", c, p.pos)
	}
}

func (p *sigScanner) classType() error {
	p.pos++
	name, err := p.identifier()
	if err != nil {
		return err
	}
	p.emit(name)
	for {
		switch p.peek() {
		case '<':
			if err := p.typeArguments(); err != nil {
				return err
			}
		case '.':
			p.pos++
			inner, err := p.identifier()
			if err != nil {
				return err
			}
			name += "$" + inner
			p.emit(name)
		case ';':
			p.pos++
			return nil
		default:
			return fmt.Errorf("unterminated class type at %d", p.pos)
		}
	}
}

func (p *sigScanner) identifier() (string, error) {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(";<.>", rune(p.s[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("empty class name at %d", p.pos)
	}
	return p.s[start:p.pos], nil
}

func (p *sigScanner) typeArguments() error {
	p.pos++
	for p.peek() != '>' {
		switch p.peek() {
		case 0:
			return fmt.Errorf("unterminated type arguments")
		case '*':
			p.pos++
			continue
		case '+', '-':
			p.pos++
		}
		if err := p.typeSignature(); err != nil {
			return err
		}
	}
	return p.expect('>')
}
