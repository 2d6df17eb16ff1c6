package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/project"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowbuild",
		Short: "Declarative build tool for data pipelines",
		Long: `flowbuild runs the targets of a data pipeline project in dependency order.

Targets declare the resources they require and provide. For each phase the
targets are sorted so that producers run before consumers, and a target only
runs when it reports itself dirty or --force is given. Running a phase also
runs the lifecycle phases before it (create, migrate, build, verify) unless
--no-lifecycle is set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("project", "p", project.DefaultFile, "project file")
	flags.String("config", "", "configuration file (default ./flowbuild.yaml or $FLOWBUILD_CONFIG)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.String("format", "", "output format: text, json, yaml")
	flags.Bool("no-color", false, "disable colored output")

	for _, p := range phase.All() {
		root.AddCommand(newPhaseCmd(p))
	}
	root.AddCommand(newGraphCmd(), newHistoryCmd(), newVersionCmd())

	return root
}

// ExecuteContext runs the CLI with the process arguments.
func ExecuteContext(ctx context.Context) error {
	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes the CLI with explicit arguments and output streams.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCmd()
	root.SetArgs(NormalizeArgs(args))
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// NormalizeArgs rewrites the single-dash -nl spelling to --no-lifecycle.
// Arguments after "--" are left alone.
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			out = append(out, args[i:]...)
			break
		}
		if a == "-nl" {
			a = "--no-lifecycle"
		}
		out = append(out, a)
	}
	return out
}
