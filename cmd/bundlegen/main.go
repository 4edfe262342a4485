package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/dhamidi/bundlegen/config"
)

// globals holds what the root command resolves before a subcommand runs.
type globals struct {
	settingsFile string
	settings     config.Settings
}

func main() {
	g := &globals{settings: config.DefaultSettings()}

	rootCmd := &cobra.Command{
		Use:           "bundlegen",
		Short:         "Compute OSGi package headers from compiled classes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.settingsFile, "config", "", "settings file (default: ./bundlegen.{yaml,toml})")
	flags.CountP("verbose", "v", "increase log verbosity")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.Bool("pedantic", false, "report warnings as errors")
	flags.Bool("no-uses", false, "do not compute uses: directives")
	flags.String("crawl", "auto", "bytecode crawl for Class.forName (auto, always, never)")
	flags.Int("parallelism", 0, "concurrent class parsers (0 means GOMAXPROCS)")
	flags.StringP("format", "f", "text", "output format (text, json, manifest)")
	flags.String("repository", "", "remote Maven repository for classpath coordinates")

	rootCmd.AddCommand(newAnalyzeCmd(g))
	rootCmd.AddCommand(newDumpCmd(g))
	rootCmd.AddCommand(newVersionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "bundlegen:", err)
		os.Exit(1)
	}
}

func (g *globals) load(cmd *cobra.Command) error {
	opts := config.LoadOptions{File: g.settingsFile, Flags: cmd.Flags()}
	if g.settingsFile == "" {
		opts.Dirs = []string{"."}
	}
	s, used, err := config.LoadSettings(opts)
	if err != nil {
		return err
	}
	g.settings = s

	var path *string
	if s.LogFile != "" {
		path = &s.LogFile
	}
	commonlog.Configure(s.Verbosity, path)
	if used != "" {
		commonlog.GetLogger("bundlegen").Infof("settings from %s", used)
	}
	return nil
}
