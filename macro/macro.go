// Package macro expands ${...} references in instruction values. Keys are
// looked up in a property set; a few functions compute version ranges.
package macro

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/bundlegen/version"
)

var log = commonlog.GetLogger("bundlegen.macro")

// MaxDepth bounds nested expansion.
const MaxDepth = 64

var ErrRecursion = errors.New("macro expansion too deep")

// Processor expands macros in a string.
type Processor interface {
	Process(s string) (string, error)
}

// Replacer expands ${key} from a property set, falling back to a parent.
// Unknown keys are left in place.
type Replacer struct {
	props  *properties.Properties
	parent *Replacer
}

// New returns a Replacer over p. Expansion by the property set itself is
// disabled; the Replacer does its own.
func New(p *properties.Properties) *Replacer {
	if p == nil {
		p = properties.NewProperties()
	}
	p.DisableExpansion = true
	return &Replacer{props: p}
}

// Bind returns a Processor that sees kv as extra properties on top of p.
// kv holds alternating keys and values.
func Bind(p Processor, kv ...string) Processor {
	local := properties.NewProperties()
	local.DisableExpansion = true
	for i := 0; i+1 < len(kv); i += 2 {
		local.Set(kv[i], kv[i+1])
	}
	r := &Replacer{props: local}
	if parent, ok := p.(*Replacer); ok {
		r.parent = parent
	} else if p != nil {
		// A foreign processor runs after the bound keys are expanded.
		return chain{r, p}
	}
	return r
}

type chain []Processor

func (c chain) Process(s string) (string, error) {
	var err error
	for _, p := range c {
		if s, err = p.Process(s); err != nil {
			return "", err
		}
	}
	return s, nil
}

// Get looks key up through the parent chain.
func (r *Replacer) Get(key string) (string, bool) {
	for p := r; p != nil; p = p.parent {
		if v, ok := p.props.Get(key); ok {
			return v, true
		}
	}
	return "", false
}

func (r *Replacer) Process(s string) (string, error) {
	return r.process(s, 0)
}

func (r *Replacer) process(s string, depth int) (string, error) {
	if depth > MaxDepth {
		return "", fmt.Errorf("%w: %q", ErrRecursion, s)
	}
	var sb strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			sb.WriteString(s)
			return sb.String(), nil
		}
		end := closing(s, start+2)
		if end < 0 {
			sb.WriteString(s)
			return sb.String(), nil
		}
		sb.WriteString(s[:start])

		inner, err := r.process(s[start+2:end], depth+1)
		if err != nil {
			return "", err
		}
		v, err := r.expand(inner, depth)
		if err != nil {
			return "", err
		}
		sb.WriteString(v)
		s = s[end+1:]
	}
}

// closing finds the '}' matching an opening "${" whose body starts at i.
func closing(s string, i int) int {
	nest := 0
	for ; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "${"):
			nest++
			i++
		case s[i] == '}':
			if nest == 0 {
				return i
			}
			nest--
		}
	}
	return -1
}

func (r *Replacer) expand(body string, depth int) (string, error) {
	args := strings.Split(body, ";")
	switch args[0] {
	case "version":
		if len(args) >= 2 {
			return r.versionMacro(args[1:])
		}
	case "range":
		if len(args) >= 2 {
			return r.rangeMacro(args[1:])
		}
	}
	v, ok := r.Get(body)
	if !ok {
		log.Debugf("no value for macro ${%s}", body)
		return "${" + body + "}", nil
	}
	return r.process(v, depth+1)
}

// versionMacro implements ${version;mask[;version]}. The version defaults
// to the value of "@".
func (r *Replacer) versionMacro(args []string) (string, error) {
	v, err := r.versionArg(args[1:])
	if err != nil {
		return "", err
	}
	return applyMask(args[0], v)
}

// rangeMacro implements ${range;mask[;version]} where mask looks like
// "[==,+)".
func (r *Replacer) rangeMacro(args []string) (string, error) {
	mask := strings.TrimSpace(args[0])
	comma := strings.IndexByte(mask, ',')
	if len(mask) < 4 || comma < 0 || !strings.ContainsRune("[(", rune(mask[0])) || !strings.ContainsRune("])", rune(mask[len(mask)-1])) {
		return "", fmt.Errorf("invalid range mask %q", mask)
	}
	v, err := r.versionArg(args[1:])
	if err != nil {
		return "", err
	}
	low, err := applyMask(mask[1:comma], v)
	if err != nil {
		return "", err
	}
	high, err := applyMask(mask[comma+1:len(mask)-1], v)
	if err != nil {
		return "", err
	}
	return mask[:1] + low + "," + high + mask[len(mask)-1:], nil
}

func (r *Replacer) versionArg(rest []string) (version.Version, error) {
	raw := ""
	if len(rest) > 0 {
		raw = rest[0]
	} else if at, ok := r.Get("@"); ok {
		raw = at
	}
	raw = version.Default().Cleanup(raw)
	return version.Parse(raw)
}

// applyMask renders v through a mask of up to four characters: '=' keeps a
// segment, '+' and '-' step it, a digit replaces it and '~' omits it.
func applyMask(mask string, v version.Version) (string, error) {
	segs := []string{strconv.Itoa(v.Major), strconv.Itoa(v.Minor), strconv.Itoa(v.Micro), v.Qualifier}
	var out []string
	for i, c := range mask {
		if i >= len(segs) {
			return "", fmt.Errorf("invalid version mask %q", mask)
		}
		switch {
		case c == '=':
			out = append(out, segs[i])
		case c == '~':
		case i == 3:
			return "", fmt.Errorf("invalid qualifier mask %q", mask)
		case c == '+' || c == '-':
			n, _ := strconv.Atoi(segs[i])
			if c == '+' {
				n++
			} else if n > 0 {
				n--
			}
			out = append(out, strconv.Itoa(n))
		case c >= '0' && c <= '9':
			out = append(out, string(c))
		default:
			return "", fmt.Errorf("invalid version mask %q", mask)
		}
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "."), nil
}
