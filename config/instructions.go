package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/bundlegen/analyzer"
	"github.com/dhamidi/bundlegen/macro"
	"github.com/dhamidi/bundlegen/maven"
)

var log = commonlog.GetLogger("bundlegen.config")

// Keys understood in a bnd file. Everything else is available to macros.
const (
	ExportPackage        = "Export-Package"
	PrivatePackage       = "Private-Package"
	ImportPackage        = "Import-Package"
	DynamicImportPackage = "DynamicImport-Package"
	BundleClassPath      = "Bundle-ClassPath"
	BundleActivator      = "Bundle-Activator"

	NoUses         = "-nouses"
	Pedantic       = "-pedantic"
	VersionPolicy  = "-versionpolicy"
	ProviderPolicy = "-providerpolicy"
	Classpath      = "-classpath"
)

// Instructions is a parsed bnd file.
type Instructions struct {
	// Base is the directory relative classpath entries resolve against.
	Base  string
	props *properties.Properties
}

// LoadInstructions reads a bnd file.
func LoadInstructions(path string) (*Instructions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instructions: %w", err)
	}
	ins, err := ParseInstructions(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	ins.Base = filepath.Dir(path)
	return ins, nil
}

// ParseInstructions parses bnd instructions in Java properties syntax.
// ${...} references are left for the macro processor.
func ParseInstructions(data []byte) (*Instructions, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	return &Instructions{Base: ".", props: p}, nil
}

// Get returns the trimmed value of key, or "".
func (ins *Instructions) Get(key string) string {
	v, _ := ins.props.Get(key)
	return strings.TrimSpace(v)
}

// Set overrides key. Command line -D style definitions go through here.
func (ins *Instructions) Set(key, value string) {
	if _, _, err := ins.props.Set(key, value); err != nil {
		log.Warningf("cannot set %s: %s", key, err)
	}
}

func (ins *Instructions) Keys() []string {
	return ins.props.Keys()
}

// Config returns the analyzer configuration the instructions describe.
func (ins *Instructions) Config() analyzer.Config {
	return analyzer.Config{
		ExportPackage:        ins.Get(ExportPackage),
		PrivatePackage:       ins.Get(PrivatePackage),
		ImportPackage:        ins.Get(ImportPackage),
		DynamicImportPackage: ins.Get(DynamicImportPackage),
		BundleClassPath:      ins.Get(BundleClassPath),
		BundleActivator:      ins.Get(BundleActivator),
		NoUses:               ins.flag(NoUses),
		Pedantic:             ins.flag(Pedantic),
		VersionPolicy:        ins.Get(VersionPolicy),
		ProviderPolicy:       ins.Get(ProviderPolicy),
	}
}

func (ins *Instructions) flag(key string) bool {
	switch strings.ToLower(ins.Get(key)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

// Classpath returns the -classpath entries. Relative paths are resolved
// against Base; Maven coordinates are returned as written.
func (ins *Instructions) Classpath() []string {
	var out []string
	for _, e := range strings.Split(ins.Get(Classpath), ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !filepath.IsAbs(e) && !maven.IsCoordinate(e) {
			e = filepath.Join(ins.Base, e)
		}
		out = append(out, e)
	}
	return out
}

// Macros returns a macro processor over all properties of the file.
func (ins *Instructions) Macros() *macro.Replacer {
	return macro.New(ins.props)
}
