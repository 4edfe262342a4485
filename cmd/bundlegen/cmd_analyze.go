package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhamidi/bundlegen/analyzer"
	"github.com/dhamidi/bundlegen/config"
	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/format"
	"github.com/dhamidi/bundlegen/jar"
	"github.com/dhamidi/bundlegen/maven"
)

func newAnalyzeCmd(g *globals) *cobra.Command {
	var (
		bndFile   string
		classpath []string
		defines   []string
		exports   string
		imports   string
		privates  string
	)

	cmd := &cobra.Command{
		Use:   "analyze <bundle>",
		Short: "Analyze a jar or class directory and print its package headers",
		Long: `Analyze scans the classes of a bundle, selects exports and imports with the
instructions of a bnd file and prints the resulting headers.

The bundle may be a directory or a jar. Classpath jars contribute the
versions of the packages the bundle imports.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ins, err := loadInstructions(bndFile)
			if err != nil {
				return err
			}
			for _, d := range defines {
				key, value, ok := strings.Cut(d, "=")
				if !ok {
					return fmt.Errorf("invalid definition %q (expected key=value)", d)
				}
				ins.Set(key, value)
			}
			overrides := map[string]string{
				config.ExportPackage:  exports,
				config.ImportPackage:  imports,
				config.PrivatePackage: privates,
			}
			for key, value := range overrides {
				if value != "" {
					ins.Set(key, value)
				}
			}
			return runAnalyze(cmd, g.settings, args[0], ins, classpath)
		},
	}

	cmd.Flags().StringVarP(&bndFile, "bnd", "b", "", "bnd instruction file")
	cmd.Flags().StringSliceVarP(&classpath, "classpath", "c", nil, "classpath jars or directories")
	cmd.Flags().StringArrayVarP(&defines, "define", "D", nil, "set an instruction or macro property (key=value)")
	cmd.Flags().StringVar(&exports, "export", "", "Export-Package instruction")
	cmd.Flags().StringVar(&imports, "import", "", "Import-Package instruction")
	cmd.Flags().StringVar(&privates, "private", "", "Private-Package instruction")

	return cmd
}

func loadInstructions(path string) (*config.Instructions, error) {
	if path == "" {
		return config.ParseInstructions(nil)
	}
	return config.LoadInstructions(path)
}

func runAnalyze(cmd *cobra.Command, s config.Settings, bundle string, ins *config.Instructions, extra []string) error {
	cfg := ins.Config()
	if err := s.Apply(&cfg); err != nil {
		return err
	}

	dot, err := jar.Open(bundle)
	if err != nil {
		return err
	}
	defer dot.Close()

	var cp []*jar.Jar
	var repo *maven.Repository
	for _, p := range append(ins.Classpath(), extra...) {
		if maven.IsCoordinate(p) {
			if repo == nil {
				if repo, err = maven.NewRepository(s.Repository, s.LocalRepository); err != nil {
					return err
				}
			}
			c, _ := maven.ParseCoordinate(p)
			if p, err = repo.Jar(cmd.Context(), c); err != nil {
				return fmt.Errorf("classpath: %w", err)
			}
		}
		j, err := jar.Open(p)
		if err != nil {
			return fmt.Errorf("classpath: %w", err)
		}
		defer j.Close()
		cp = append(cp, j)
	}

	a := analyzer.New(descriptors.New(), dot, cfg,
		analyzer.WithClasspath(cp...),
		analyzer.WithProcessor(ins.Macros()),
	)
	analyzeErr := a.Analyze(cmd.Context())
	if err := cmd.Context().Err(); err != nil {
		return err
	}

	enc, err := reportEncoder(s.Format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := enc.Encode(format.NewReport(dot.Name(), a)); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if s.Format != "text" {
		for _, w := range a.Warnings() {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
		}
	}
	return analyzeErr
}

func reportEncoder(name string, w io.Writer) (format.Encoder, error) {
	switch name {
	case "text":
		return format.NewLineEncoder(w), nil
	case "json":
		return format.NewJSONEncoder(w), nil
	case "manifest":
		return format.NewManifestEncoder(w), nil
	}
	return nil, fmt.Errorf("unknown format: %s (expected text, json or manifest)", name)
}
