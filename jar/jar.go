// Package jar enumerates the resources of a bundle or classpath entry, be it
// a directory, a zip archive or any fs.FS.
package jar

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bundlegen.jar")

const ManifestPath = "META-INF/MANIFEST.MF"

// Jar is a read-only view of a set of resources keyed by slash paths.
type Jar struct {
	name      string
	fsys      fs.FS
	closer    io.Closer
	resources []string
	dirs      []string
}

// Resource is a single file inside a Jar.
type Resource struct {
	jar  *Jar
	Path string
}

func (r Resource) Open() (io.ReadCloser, error) {
	return r.jar.fsys.Open(r.Path)
}

func (r Resource) Bytes() ([]byte, error) {
	return fs.ReadFile(r.jar.fsys, r.Path)
}

// New indexes fsys. The walk happens once; later changes to fsys are not
// seen.
func New(name string, fsys fs.FS) (*Jar, error) {
	j := &Jar{name: name, fsys: fsys}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if d.IsDir() {
			j.dirs = append(j.dirs, p)
		} else {
			j.resources = append(j.resources, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", name, err)
	}
	slices.Sort(j.resources)
	slices.Sort(j.dirs)
	log.Debugf("indexed %s: %d resources", name, len(j.resources))
	return j, nil
}

// OpenDir indexes a directory tree.
func OpenDir(dir string) (*Jar, error) {
	return New(dir, os.DirFS(dir))
}

// OpenZip opens a zip or jar file. The Jar must be closed.
func OpenZip(file string) (*Jar, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file, err)
	}
	j, err := New(file, zr)
	if err != nil {
		zr.Close()
		return nil, err
	}
	j.closer = zr
	return j, nil
}

// Open picks OpenDir or OpenZip by looking at the path.
func Open(p string) (*Jar, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return OpenDir(p)
	}
	return OpenZip(p)
}

// FromBytes reads an in-memory zip archive, typically a jar embedded in
// another jar.
func FromBytes(name string, data []byte) (*Jar, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return New(name, zr)
}

// Sub returns the resources below dir as their own Jar.
func (j *Jar) Sub(dir string) (*Jar, error) {
	sub, err := fs.Sub(j.fsys, strings.Trim(dir, "/"))
	if err != nil {
		return nil, err
	}
	return New(j.name+"!/"+dir, sub)
}

func (j *Jar) Name() string { return j.name }

func (j *Jar) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// Resources lists file paths in lexical order.
func (j *Jar) Resources() []string { return slices.Clone(j.resources) }

// Directories lists directory paths in lexical order.
func (j *Jar) Directories() []string { return slices.Clone(j.dirs) }

func (j *Jar) Resource(p string) (Resource, bool) {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if _, ok := slices.BinarySearch(j.resources, p); !ok {
		return Resource{}, false
	}
	return Resource{jar: j, Path: p}, true
}

// IsDir reports whether p is a directory of the Jar.
func (j *Jar) IsDir(p string) bool {
	_, ok := slices.BinarySearch(j.dirs, strings.Trim(p, "/"))
	return ok
}

// Manifest returns the main section of META-INF/MANIFEST.MF, or nil when
// there is none.
func (j *Jar) Manifest() (map[string]string, error) {
	r, ok := j.Resource(ManifestPath)
	if !ok {
		return nil, nil
	}
	data, err := r.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest of %s: %w", j.name, err)
	}
	return ParseManifest(data)
}

// ParseManifest reads the main section of a manifest. Lines starting with a
// space continue the previous header.
func ParseManifest(data []byte) (map[string]string, error) {
	m := make(map[string]string)
	var key string
	var value strings.Builder
	flush := func() {
		if key != "" {
			m[key] = value.String()
		}
		key = ""
		value.Reset()
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSuffix(sc.Text(), "\r")
		switch {
		case line == "":
			flush()
			return m, nil
		case line[0] == ' ':
			if key == "" {
				return nil, fmt.Errorf("manifest line %d: continuation without header", n)
			}
			value.WriteString(line[1:])
		default:
			flush()
			name, v, ok := strings.Cut(line, ":")
			if !ok || name == "" {
				return nil, fmt.Errorf("manifest line %d: missing ':' in %q", n, line)
			}
			key = name
			value.WriteString(strings.TrimPrefix(v, " "))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return m, nil
}
