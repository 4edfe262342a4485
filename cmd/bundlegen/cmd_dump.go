package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhamidi/bundlegen/clazz"
	"github.com/dhamidi/bundlegen/descriptors"
	"github.com/dhamidi/bundlegen/format"
	"github.com/dhamidi/bundlegen/jar"
)

func newDumpCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file.class | jar | dir> [class...]",
		Short: "Dump what the parser learns from class files",
		Long: `Dump parses a single class file, or the classes of a jar or directory, and
prints their structure and referred packages. Classes inside a jar may be
selected by binary name (com/example/Foo) or by path.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := clazz.ParseCrawlMode(g.settings.Crawl)
			if err != nil {
				return err
			}
			enc, err := classEncoder(g.settings.Format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			d := descriptors.New()
			opts := []clazz.Option{clazz.WithCrawl(mode)}

			if filepath.Ext(args[0]) == ".class" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				c, err := clazz.Parse(d, filepath.ToSlash(args[0]), f, opts...)
				if err != nil {
					return fmt.Errorf("parse class file: %w", err)
				}
				return enc.Encode(c)
			}

			j, err := jar.Open(args[0])
			if err != nil {
				return err
			}
			defer j.Close()

			paths, err := selectClasses(j, args[1:])
			if err != nil {
				return err
			}
			for _, p := range paths {
				r, _ := j.Resource(p)
				data, err := r.Bytes()
				if err != nil {
					return err
				}
				c, err := clazz.ParseBytes(d, p, data, opts...)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", p, err)
					continue
				}
				if err := enc.Encode(c); err != nil {
					return fmt.Errorf("encode %s: %w", p, err)
				}
			}
			return nil
		},
	}

	return cmd
}

func selectClasses(j *jar.Jar, names []string) ([]string, error) {
	if len(names) == 0 {
		var paths []string
		for _, p := range j.Resources() {
			if strings.HasSuffix(p, ".class") {
				paths = append(paths, p)
			}
		}
		return paths, nil
	}
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := n
		if !strings.HasSuffix(p, ".class") {
			p = strings.ReplaceAll(p, ".", "/") + ".class"
		}
		if _, ok := j.Resource(p); !ok {
			return nil, fmt.Errorf("%s: no class %s", j.Name(), n)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func classEncoder(name string, w io.Writer) (format.ClassEncoder, error) {
	switch name {
	case "text":
		return format.NewLineClassEncoder(w), nil
	case "json":
		return format.NewJSONClassEncoder(w), nil
	}
	return nil, fmt.Errorf("unknown format: %s (expected text or json)", name)
}
