package analyzer

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"runtime"
	"strings"

	"github.com/magiconair/properties"
	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/bundlegen/clazz"
	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/header"
	"github.com/dhamidi/bundlegen/jar"
	"github.com/dhamidi/bundlegen/packages"
)

// Internal directives recording where package metadata came from. Keys
// starting with '-' never reach a rendered header.
const (
	SourceDirective   = "-internal-source:"
	ExportedDirective = "-internal-exported:"
	InfoDirective     = "-from:"
)

// Annotation types read from package-info classes.
const (
	versionAnnotation      = "org/osgi/annotation/versioning/Version"
	providerTypeAnnotation = "org/osgi/annotation/versioning/ProviderType"
	exportAnnotation       = "org/osgi/annotation/bundle/Export"
)

var oldPackageInfo = regexp.MustCompile(`^class\s+(.+)\s+version\s+(\S+)$`)

// root is one Bundle-ClassPath entry: classes live under prefix in j.
type root struct {
	j      *jar.Jar
	prefix string
	dirs   bool
}

type scanTask struct {
	root root
	path string
}

type scanResult struct {
	c   *clazz.Clazz
	err error
}

func (a *Analyzer) scan(ctx context.Context) error {
	var tasks []scanTask
	for _, r := range a.roots() {
		for _, p := range r.j.Resources() {
			if !strings.HasPrefix(p, r.prefix) {
				continue
			}
			rel := p[len(r.prefix):]
			if dir := path.Dir(rel); r.dirs && dir != "." {
				a.learnPackage(r.j, r.prefix, a.d.PackageRef(dir), a.contained)
			}
			if strings.HasSuffix(p, ".class") {
				tasks = append(tasks, scanTask{root: r, path: p})
			}
		}
	}

	results, err := a.parseAll(ctx, tasks)
	if err != nil {
		return err
	}
	for i, t := range tasks {
		a.fold(t, results[i])
	}

	for _, j := range a.classpath {
		a.learnClasspath(j)
	}

	if name := strings.TrimSpace(a.cfg.BundleActivator); name != "" {
		a.activator = a.d.TypeRefFromFQN(name)
		a.referred.PutIfAbsent(a.activator.Package(), nil)
		log.Debugf("activator %s", a.activator)
	}

	a.referred.DeleteAll(a.contained)
	if def := a.d.DefaultPackage(); a.referred.Contains(def) {
		var names []string
		for _, c := range a.Classes() {
			if c.RefersTo(def) {
				names = append(names, c.ClassName.FQN())
			}
		}
		a.error(&DefaultPackageError{Classes: names})
		a.referred.Delete(def)
	}
	return nil
}

// parseAll parses the class resources in parallel. Results keep task order
// so folding them stays deterministic.
func (a *Analyzer) parseAll(ctx context.Context, tasks []scanTask) ([]scanResult, error) {
	results := make([]scanResult, len(tasks))
	limit := a.cfg.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	if a.collector != nil {
		limit = 1
	}

	opts := []clazz.Option{clazz.WithCrawl(a.cfg.Crawl)}
	if a.collector != nil {
		opts = append(opts, clazz.WithCollector(a.collector))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, ok := t.root.j.Resource(t.path)
			if !ok {
				results[i].err = fmt.Errorf("resource %s disappeared", t.path)
				return nil
			}
			data, err := r.Bytes()
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].c, results[i].err = clazz.ParseBytes(a.d, t.path, data, opts...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Analyzer) fold(t scanTask, res scanResult) {
	rel := t.path[len(t.root.prefix):]
	if res.err != nil {
		a.error(&ClassError{Path: t.root.j.Name() + "!/" + t.path, Err: res.err})
		return
	}
	c := res.c
	if c.ClassName.Path() != rel {
		if t.root.dirs {
			a.error(&PathMismatchError{Path: t.path, ClassName: c.ClassName.FQN()})
		}
		return
	}
	if _, dup := a.classes[c.ClassName]; dup {
		a.warningf("class %s found twice on the bundle classpath, keeping the first", c.ClassName)
		return
	}
	a.classes[c.ClassName] = c
	a.order = append(a.order, c.ClassName)

	pkg := c.Package()
	a.learnPackage(t.root.j, t.root.prefix, pkg, a.contained)
	refs := c.Referred()
	for _, p := range refs {
		a.referred.PutIfAbsent(p, nil)
	}
	a.uses.Add(pkg, refs...)
	log.Debugf("%s: %d referred packages", c, len(refs))
}

// roots expands Bundle-ClassPath. Without one the whole bundle is a single
// root.
func (a *Analyzer) roots() []root {
	bcp, err := header.Parse(a.cfg.BundleClassPath)
	if err != nil {
		a.error(fmt.Errorf("invalid Bundle-ClassPath: %w", err))
	}
	if bcp.Len() == 0 {
		return []root{{j: a.dot, dirs: true}}
	}

	dirs := true
	hasDot := false
	for _, c := range bcp.Clauses() {
		name := descriptors.StripDuplicateMarker(c.Name)
		if a.dot.IsDir(name) {
			dirs = false
		}
		hasDot = hasDot || name == "."
	}

	var roots []root
	for _, c := range bcp.Clauses() {
		name := descriptors.StripDuplicateMarker(c.Name)
		if name == "." {
			roots = append(roots, root{j: a.dot, dirs: dirs})
			continue
		}
		if r, ok := a.dot.Resource(name); ok {
			data, err := r.Bytes()
			if err == nil {
				var j *jar.Jar
				if j, err = jar.FromBytes(a.dot.Name()+"!/"+name, data); err == nil {
					roots = append(roots, root{j: j, dirs: true})
					continue
				}
			}
			a.warningf("invalid Bundle-ClassPath entry %s: %v", name, err)
			continue
		}
		if a.dot.IsDir(name) {
			if hasDot {
				a.warningf("Bundle-ClassPath uses directory %s as well as '.'", name)
			}
			roots = append(roots, root{j: a.dot, prefix: strings.Trim(name, "/") + "/", dirs: true})
			continue
		}
		if c.Attrs.Value(ResolutionDirective) != "optional" {
			a.warningf("no embedded jar or directory %s for Bundle-ClassPath", name)
		}
	}
	return roots
}

// learnClasspath records what one classpath jar offers. Manifest exports
// win over package metadata; the first jar to offer a package wins.
func (a *Analyzer) learnClasspath(j *jar.Jar) {
	m, err := j.Manifest()
	if err != nil {
		a.warningf("erroneous manifest in %s: %v", j.Name(), err)
	}
	if m == nil {
		for _, dir := range packageDirs(j) {
			a.learnPackage(j, "", a.d.PackageRef(dir), a.classpathExports)
		}
		return
	}
	exported, err := header.Parse(m["Export-Package"])
	if err != nil {
		a.warningf("erroneous Export-Package in %s: %v", j.Name(), err)
		return
	}
	for _, c := range exported.Clauses() {
		ref := a.d.PackageRefFromFQN(descriptors.StripDuplicateMarker(c.Name))
		attrs := c.Attrs.Clone()
		attrs.Set(ExportedDirective, j.Name())
		fixupSpecificationVersion(attrs)
		a.classpathExports.PutIfAbsent(ref, attrs)
	}
}

func packageDirs(j *jar.Jar) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range j.Resources() {
		if dir := path.Dir(p); dir != "." && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// learnPackage stores the metadata of a package the first time it is seen.
func (a *Analyzer) learnPackage(j *jar.Jar, prefix string, ref *descriptors.PackageRef, target *packages.Packages) {
	if ref.IsMetaData() || ref.IsJava() || ref.IsPrimitive() || a.visited[ref] {
		return
	}
	a.visited[ref] = true
	attrs := a.packageInfo(j, prefix, ref)
	attrs.Set(SourceDirective, j.Name())
	target.Put(ref, attrs)
}

// packageInfo reads package metadata from package-info.class or, failing
// that, a packageinfo properties file.
func (a *Analyzer) packageInfo(j *jar.Jar, prefix string, ref *descriptors.PackageRef) *header.Attrs {
	dir := prefix + ref.Binary()
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	if r, ok := j.Resource(dir + "package-info.class"); ok {
		if attrs := a.packageInfoClass(r); attrs.Has(VersionAttribute) {
			attrs.Set(InfoDirective, r.Path)
			return attrs
		}
	}
	if r, ok := j.Resource(dir + "packageinfo"); ok {
		if attrs := a.packageInfoFile(ref, r); attrs != nil {
			attrs.Set(InfoDirective, r.Path)
			fixupSpecificationVersion(attrs)
			return attrs
		}
	}
	return header.NewAttrs()
}

func (a *Analyzer) packageInfoClass(r jar.Resource) *header.Attrs {
	attrs := header.NewAttrs()
	data, err := r.Bytes()
	if err != nil {
		a.warningf("failed to read %s: %v", r.Path, err)
		return attrs
	}
	c, err := clazz.ParseBytes(a.d, r.Path, data, clazz.WithCrawl(clazz.CrawlNever))
	if err != nil {
		a.error(&ClassError{Path: r.Path, Err: err})
		return attrs
	}

	for _, ann := range c.Annotations {
		switch ann.Type.Binary() {
		case versionAnnotation:
			v, _ := ann.Get("value")
			s, _ := v.(string)
			if s, err = a.macros.Process(s); err != nil {
				a.warningf("version annotation in %s: %v", c, err)
				continue
			}
			if !a.grammar.Valid(s) {
				a.error(&MalformedVersionError{Package: c.Package().FQN(), Version: s})
				continue
			}
			attrs.Set(VersionAttribute, s)
		case providerTypeAnnotation:
			if !attrs.Has(ProvideDirective) {
				attrs.Set(ProvideDirective, "true")
			}
		case exportAnnotation:
			if v, ok := ann.Get("uses"); ok {
				var uses []string
				if old := attrs.Value(UsesDirective); old != "" {
					uses = append(uses, old)
				}
				list, _ := v.([]any)
				for _, u := range list {
					uses = append(uses, fmt.Sprint(u))
				}
				attrs.Set(UsesDirective, strings.Join(uses, ","))
			}
			if v, ok := ann.Get("substitution"); ok {
				e, _ := v.(clazz.EnumValue)
				switch e.Name {
				case "CONSUMER":
					attrs.Set(ProvideDirective, "false")
				case "PROVIDER":
					attrs.Set(ProvideDirective, "true")
				case "NOIMPORT":
					attrs.Set(NoImportDirective, "true")
				case "CALCULATED":
				default:
					a.warningf("export annotation in %s has invalid substitution %q", c, e.Name)
				}
			}
		}
	}
	return attrs
}

// packageInfoFile reads the properties-style packageinfo file. A value
// starting with ':' turns its key into a directive.
func (a *Analyzer) packageInfoFile(ref *descriptors.PackageRef, r jar.Resource) *header.Attrs {
	data, err := r.Bytes()
	if err != nil {
		a.warningf("failed to read %s: %v", r.Path, err)
		return nil
	}
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		a.warningf("invalid packageinfo for %s: %v", ref, err)
		return nil
	}

	attrs := header.NewAttrs()
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		if strings.EqualFold(key, "include") {
			if m := oldPackageInfo.FindStringSubmatch(strings.TrimSpace(value)); m != nil {
				key, value = VersionAttribute, m[2]
			}
		}
		if strings.HasPrefix(value, ":") {
			key, value = key+":", value[1:]
		}
		attrs.Set(key, value)
	}
	return attrs
}

func fixupSpecificationVersion(attrs *header.Attrs) {
	if attrs.Has(SpecificationVersionAttribute) && !attrs.Has(VersionAttribute) {
		attrs.Set(VersionAttribute, attrs.Value(SpecificationVersionAttribute))
		attrs.Delete(SpecificationVersionAttribute)
	}
}
