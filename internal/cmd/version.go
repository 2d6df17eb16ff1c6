package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flowbuild/internal/ux"
	"github.com/felixgeelhaar/flowbuild/internal/version"
)

func newVersionCmd() *cobra.Command {
	var verbose bool

	c := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()

			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			if format != "" && format != ux.FormatText {
				f, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
				if err != nil {
					return err
				}
				return f.Format(info)
			}

			if verbose {
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "flowbuild %s\n", info.Short())
			return nil
		},
	}

	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed version information")
	return c
}
