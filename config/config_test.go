package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/bundlegen/analyzer"
	"github.com/dhamidi/bundlegen/clazz"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Parallel()

	s, used, err := LoadSettings(LoadOptions{Dirs: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettingsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yaml := "verbosity: 2\npedantic: true\ncrawl: never\nformat: json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundlegen.yaml"), []byte(yaml), 0o644))

	s, used, err := LoadSettings(LoadOptions{Dirs: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bundlegen.yaml"), used)
	assert.Equal(t, 2, s.Verbosity)
	assert.True(t, s.Pedantic)
	assert.Equal(t, "never", s.Crawl)
	assert.Equal(t, "json", s.Format)
}

func TestLoadSettingsToml(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(file, []byte("no_uses = true\nparallelism = 3\n"), 0o644))

	s, _, err := LoadSettings(LoadOptions{File: file})
	require.NoError(t, err)
	assert.True(t, s.NoUses)
	assert.Equal(t, 3, s.Parallelism)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := LoadSettings(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoadSettingsFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundlegen.yaml"), []byte("crawl: never\nformat: json\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("crawl", "auto", "")
	flags.String("format", "text", "")
	require.NoError(t, flags.Parse([]string{"--crawl=always"}))

	s, _, err := LoadSettings(LoadOptions{Dirs: []string{dir}, Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, "always", s.Crawl, "a changed flag wins")
	assert.Equal(t, "json", s.Format, "an unchanged flag does not")
}

func TestLoadSettingsEnv(t *testing.T) {
	t.Setenv("BUNDLEGEN_LOG_FILE", "/tmp/bundlegen.log")

	s, _, err := LoadSettings(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/bundlegen.log", s.LogFile)
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.Crawl = "sometimes"
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.Format = "xml"
	assert.Error(t, s.Validate())
}

func TestSettingsApply(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.Crawl = "always"
	s.Parallelism = 4

	cfg := analyzer.Config{Pedantic: true}
	require.NoError(t, s.Apply(&cfg))
	assert.Equal(t, clazz.CrawlAlways, cfg.Crawl)
	assert.True(t, cfg.Pedantic)
	assert.False(t, cfg.NoUses)
	assert.Equal(t, 4, cfg.Parallelism)
}

const bnd = `# a sample bundle
Export-Package: com.acme.api;version=${api.version}, \
  com.acme.spi
Private-Package = com.acme.impl.*
Import-Package: *
Bundle-Activator: com.acme.impl.Activator
-nouses: true
-versionpolicy: ${range;[==,+)}
-classpath: lib/a.jar, /opt/b.jar, org.osgi:osgi.core:8.0.0
api.version = 1.2
`

func TestParseInstructions(t *testing.T) {
	t.Parallel()

	ins, err := ParseInstructions([]byte(bnd))
	require.NoError(t, err)

	cfg := ins.Config()
	assert.Equal(t, "com.acme.api;version=${api.version}, com.acme.spi", cfg.ExportPackage)
	assert.Equal(t, "com.acme.impl.*", cfg.PrivatePackage)
	assert.Equal(t, "*", cfg.ImportPackage)
	assert.Equal(t, "com.acme.impl.Activator", cfg.BundleActivator)
	assert.Equal(t, "${range;[==,+)}", cfg.VersionPolicy)
	assert.True(t, cfg.NoUses)
	assert.False(t, cfg.Pedantic)

	assert.Equal(t, []string{"lib/a.jar", "/opt/b.jar", "org.osgi:osgi.core:8.0.0"}, ins.Classpath())
}

func TestInstructionMacros(t *testing.T) {
	t.Parallel()

	ins, err := ParseInstructions([]byte(bnd))
	require.NoError(t, err)
	ins.Set("api.version", "1.3")

	out, err := ins.Macros().Process("${api.version}")
	require.NoError(t, err)
	assert.Equal(t, "1.3", out)
}

func TestLoadInstructionsResolvesClasspath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "bnd.bnd")
	require.NoError(t, os.WriteFile(file, []byte("-classpath: lib/x.jar\n-pedantic: yes\n"), 0o644))

	ins, err := LoadInstructions(file)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "lib/x.jar")}, ins.Classpath())
	assert.True(t, ins.Config().Pedantic)
}
