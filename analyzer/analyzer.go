// Package analyzer computes the package-level facts of a bundle: which
// packages it contains, which it refers to, what it exports and imports and
// which uses: constraints the exports carry.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/bundlegen/clazz"
	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/jar"
	"github.com/dhamidi/bundlegen/macro"
	"github.com/dhamidi/bundlegen/packages"
	"github.com/dhamidi/bundlegen/version"
)

var log = commonlog.GetLogger("bundlegen.analyzer")

// Attribute and directive names used by the analyzer.
const (
	SplitPackageDirective    = "-split-package:"
	ImportDirective          = "-import:"
	NoImportDirective        = "-noimport:"
	RemoveAttributeDirective = "-remove-attribute:"
	UsesDirective            = "uses:"
	MandatoryDirective       = "mandatory:"
	IncludeDirective         = "include:"
	ExcludeDirective         = "exclude:"
	ResolutionDirective      = "resolution:"
	ProvideDirective         = "provide:"

	VersionAttribute              = "version"
	SpecificationVersionAttribute = "specification-version"

	// UsesPlaceholder in an export's uses: directive is replaced by the
	// computed uses list.
	UsesPlaceholder = "<<USES>>"

	CurrentVersion = "@"
	CurrentPackage = "@package"
	CurrentUses    = "@uses"
)

type State int

const (
	Idle State = iota
	Scanning
	Merging
	Augmenting
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Merging:
		return "merging"
	case Augmenting:
		return "augmenting"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config holds the bundle instructions driving one analysis. Header values
// use the manifest clause syntax; an empty ImportPackage means "*".
// Parallelism bounds concurrent class parsing, zero meaning GOMAXPROCS.
type Config struct {
	ExportPackage        string
	PrivatePackage       string
	ImportPackage        string
	DynamicImportPackage string
	BundleClassPath      string
	BundleActivator      string

	NoUses         bool
	Pedantic       bool
	VersionPolicy  string
	ProviderPolicy string

	Crawl       clazz.CrawlMode
	Parallelism int
}

type Option func(*Analyzer)

// WithClasspath adds jars whose exports and package metadata augment the
// analysis. Earlier jars take precedence.
func WithClasspath(jars ...*jar.Jar) Option {
	return func(a *Analyzer) { a.classpath = append(a.classpath, jars...) }
}

// WithProcessor sets the macro processor for attribute values and uses
// templates.
func WithProcessor(r *macro.Replacer) Option {
	return func(a *Analyzer) { a.macros = r }
}

func WithGrammar(g *version.Grammar) Option {
	return func(a *Analyzer) { a.grammar = g }
}

// WithCollector passes c to the parser of every bundle class.
func WithCollector(c clazz.Collector) Option {
	return func(a *Analyzer) { a.collector = c }
}

// Analyzer runs one analysis over a bundle. It is not safe for concurrent
// use; the Descriptors it shares may be.
type Analyzer struct {
	d         *descriptors.Descriptors
	dot       *jar.Jar
	cfg       Config
	classpath []*jar.Jar
	macros    *macro.Replacer
	grammar   *version.Grammar
	collector clazz.Collector

	state State
	err   error

	contained        *packages.Packages
	referred         *packages.Packages
	classpathExports *packages.Packages
	exports          *packages.Packages
	imports          *packages.Packages
	privates         *packages.Packages
	uses             *UsesGraph
	unreachable      []*descriptors.PackageRef
	visited          map[*descriptors.PackageRef]bool
	activator        *descriptors.TypeRef

	classes   map[*descriptors.TypeRef]*clazz.Clazz
	order     []*descriptors.TypeRef
	cpClasses map[*descriptors.TypeRef]*clazz.Clazz

	errors   []error
	warnings []error
}

// New prepares an analysis of dot, the bundle's own content.
func New(d *descriptors.Descriptors, dot *jar.Jar, cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		d:                d,
		dot:              dot,
		cfg:              cfg,
		contained:        packages.New(),
		referred:         packages.New(),
		classpathExports: packages.New(),
		exports:          packages.New(),
		imports:          packages.New(),
		privates:         packages.New(),
		uses:             NewUsesGraph(),
		visited:          make(map[*descriptors.PackageRef]bool),
		classes:          make(map[*descriptors.TypeRef]*clazz.Clazz),
		cpClasses:        make(map[*descriptors.TypeRef]*clazz.Clazz),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.macros == nil {
		a.macros = macro.New(nil)
	}
	if a.grammar == nil {
		a.grammar = version.Default()
	}
	return a
}

// Analyze runs the analysis once; later calls return the first result. The
// returned error joins the fatal problems, or every error in pedantic mode.
// Recoverable problems are available from Errors and Warnings either way.
func (a *Analyzer) Analyze(ctx context.Context) error {
	if a.state == Done {
		return a.err
	}
	if a.state != Idle {
		return fmt.Errorf("analysis already %s", a.state)
	}

	a.enter(Scanning)
	if err := a.scan(ctx); err != nil {
		a.enter(Done)
		a.err = fmt.Errorf("failed to scan %s: %w", a.dot.Name(), err)
		return a.err
	}

	a.enter(Merging)
	if err := a.merge(); err != nil {
		a.enter(Done)
		a.err = err
		return a.err
	}

	a.enter(Augmenting)
	a.augmentExports()
	a.augmentImports()
	a.doUses()
	a.checkPrivateReferences()
	a.cleanupVersions()
	a.unreachable = a.computeUnreachable()

	a.enter(Done)
	a.err = a.result()
	return a.err
}

func (a *Analyzer) enter(s State) {
	log.Infof("%s: %s", a.dot.Name(), s)
	a.state = s
}

func (a *Analyzer) result() error {
	var fatal []error
	for _, err := range a.errors {
		var dp *DefaultPackageError
		if a.cfg.Pedantic || errors.As(err, &dp) {
			fatal = append(fatal, err)
		}
	}
	return errors.Join(fatal...)
}

func (a *Analyzer) error(err error) {
	log.Errorf("%s", err)
	a.errors = append(a.errors, err)
}

func (a *Analyzer) warning(err error) {
	log.Warningf("%s", err)
	a.warnings = append(a.warnings, err)
}

func (a *Analyzer) warningf(format string, args ...any) {
	a.warning(fmt.Errorf(format, args...))
}

// unmatched reports an instruction that selected nothing. Pedantic runs
// treat it as an error.
func (a *Analyzer) unmatched(header, input string) {
	err := &UnmatchedError{Header: header, Instruction: input}
	if a.cfg.Pedantic {
		a.error(err)
	} else {
		a.warning(err)
	}
}

func (a *Analyzer) State() State { return a.state }

func (a *Analyzer) Exports() *packages.Packages   { return a.exports }
func (a *Analyzer) Imports() *packages.Packages   { return a.imports }
func (a *Analyzer) Contained() *packages.Packages { return a.contained }
func (a *Analyzer) Referred() *packages.Packages  { return a.referred }
func (a *Analyzer) Privates() *packages.Packages  { return a.privates }
func (a *Analyzer) Uses() *UsesGraph              { return a.uses }

// ClasspathExports lists the packages the classpath jars offer, with the
// attributes learned from their manifests and package metadata.
func (a *Analyzer) ClasspathExports() *packages.Packages { return a.classpathExports }

// Unreachable lists contained packages that no export and no activator can
// reach through the uses graph, ordered by name.
func (a *Analyzer) Unreachable() []*descriptors.PackageRef { return slices.Clone(a.unreachable) }

// Classes returns the parsed bundle classes in scan order.
func (a *Analyzer) Classes() []*clazz.Clazz {
	out := make([]*clazz.Clazz, 0, len(a.order))
	for _, t := range a.order {
		out = append(out, a.classes[t])
	}
	return out
}

// Activator is the Bundle-Activator type, or nil.
func (a *Analyzer) Activator() *descriptors.TypeRef { return a.activator }

// FindType looks a bundle class up by its dotted or binary name.
func (a *Analyzer) FindType(name string) *descriptors.TypeRef {
	t := a.d.TypeRefFromFQN(name)
	if _, ok := a.classes[t]; ok {
		return t
	}
	t = a.d.TypeRef(name)
	if _, ok := a.classes[t]; ok {
		return t
	}
	return nil
}

// FindClass returns the class for t from the bundle or, failing that, from
// the classpath jars. Classpath classes are parsed on first use.
func (a *Analyzer) FindClass(t *descriptors.TypeRef) (*clazz.Clazz, error) {
	if c, ok := a.classes[t]; ok {
		return c, nil
	}
	if c, ok := a.cpClasses[t]; ok {
		return c, nil
	}
	for _, j := range a.classpath {
		r, ok := j.Resource(t.Path())
		if !ok {
			continue
		}
		data, err := r.Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", t.Path(), j.Name(), err)
		}
		c, err := clazz.ParseBytes(a.d, r.Path, data, clazz.WithCrawl(clazz.CrawlNever))
		if err != nil {
			return nil, &ClassError{Path: j.Name() + "!/" + r.Path, Err: err}
		}
		a.cpClasses[t] = c
		return c, nil
	}
	return nil, nil
}

// Errors returns the errors recorded so far, in order.
func (a *Analyzer) Errors() []error { return slices.Clone(a.errors) }

// Warnings returns the warnings recorded so far, in order.
func (a *Analyzer) Warnings() []error { return slices.Clone(a.warnings) }
