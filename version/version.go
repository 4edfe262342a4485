// Package version validates and normalizes OSGi versions and version ranges.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	versionString = `[0-9]+(\.[0-9]+(\.[0-9]+(\.[0-9A-Za-z_-]+)?)?)?`
	rangeString   = `((\(|\[)` + versionString + `,` + versionString + `(\]|\)))|` + versionString
)

var (
	fuzzyRange    = regexp.MustCompile(`^(?s)(\(|\[)\s*([-\da-zA-Z.]+)\s*,\s*([-\da-zA-Z.]+)\s*(\]|\))$`)
	fuzzyVersion  = regexp.MustCompile(`^(?s)(\d+)(\.(\d+)(\.(\d+))?)?([^a-zA-Z0-9](.*))?$`)
	fuzzyModifier = regexp.MustCompile(`^(?s)(\d+[.-])*(.*)$`)
	nonQualifier  = regexp.MustCompile(`[^0-9A-Za-z_-]`)
)

// Grammar holds the strict grammars used to decide whether a value is
// already valid. Tests may substitute their own.
type Grammar struct {
	Version *regexp.Regexp
	Range   *regexp.Regexp
}

// Default returns the OSGi version and version range grammars.
func Default() *Grammar {
	return &Grammar{
		Version: regexp.MustCompile(`^(?:` + versionString + `)$`),
		Range:   regexp.MustCompile(`^(?:` + rangeString + `)$`),
	}
}

func (g *Grammar) Valid(v string) bool      { return g.Version.MatchString(v) }
func (g *Grammar) ValidRange(v string) bool { return g.Range.MatchString(v) }

// Cleanup normalizes a version or range. Valid input is returned unchanged;
// fuzzy forms such as "1.2-SNAPSHOT" become "1.2.0.SNAPSHOT"; ranges are
// cleaned per bound. Input that cannot be interpreted is returned as is.
// Cleanup(Cleanup(v)) == Cleanup(v) for every v.
func (g *Grammar) Cleanup(v string) string {
	v = strings.TrimSpace(v)
	if g.ValidRange(v) {
		return v
	}
	if m := fuzzyRange.FindStringSubmatch(v); m != nil {
		return m[1] + g.Cleanup(m[2]) + "," + g.Cleanup(m[3]) + m[4]
	}
	m := fuzzyVersion.FindStringSubmatch(v)
	if m == nil {
		return v
	}

	var sb strings.Builder
	sb.WriteString(trimZeros(m[1]))
	qualifier := ""
	if m[6] != "" {
		qualifier = cleanupModifier(m[7])
	}
	if m[3] != "" {
		sb.WriteString("." + trimZeros(m[3]))
		if m[5] != "" {
			sb.WriteString("." + trimZeros(m[5]))
		} else if qualifier != "" {
			sb.WriteString(".0")
		}
	} else if qualifier != "" {
		sb.WriteString(".0.0")
	}
	if qualifier != "" {
		sb.WriteString("." + qualifier)
	}
	return sb.String()
}

func trimZeros(s string) string {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t := strings.TrimLeft(s, "0")
		if t == "" {
			return "0"
		}
		return t
	}
	return strconv.FormatUint(n, 10)
}

func cleanupModifier(s string) string {
	if m := fuzzyModifier.FindStringSubmatch(s); m != nil {
		s = m[2]
	}
	return nonQualifier.ReplaceAllString(s, "")
}

// Version is a parsed OSGi version.
type Version struct {
	Major, Minor, Micro int
	Qualifier           string
}

// Parse reads a strict version; missing segments are zero.
func Parse(s string) (Version, error) {
	var v Version
	s = strings.TrimSpace(s)
	if s == "" {
		return v, nil
	}
	parts := strings.SplitN(s, ".", 4)
	nums := []*int{&v.Major, &v.Minor, &v.Micro}
	for i, p := range parts {
		if i == 3 {
			v.Qualifier = p
			break
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, &MalformedVersionError{Version: s}
		}
		*nums[i] = n
	}
	return v, nil
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
	if v.Qualifier != "" {
		s += "." + v.Qualifier
	}
	return s
}

// ConsumerRange is the import range for a consumer of an API at version v:
// up to the next major version.
func ConsumerRange(v Version) string {
	return fmt.Sprintf("[%d.%d,%d)", v.Major, v.Minor, v.Major+1)
}

// ProviderRange is the import range for a provider of an API at version v:
// up to the next minor version.
func ProviderRange(v Version) string {
	return fmt.Sprintf("[%d.%d,%d.%d)", v.Major, v.Minor, v.Major, v.Minor+1)
}

// MalformedVersionError reports a version that stays invalid after cleanup.
type MalformedVersionError struct {
	Package string
	Version string
}

func (e *MalformedVersionError) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("malformed version %q", e.Version)
	}
	return fmt.Sprintf("malformed version %q for package %s", e.Version, e.Package)
}
