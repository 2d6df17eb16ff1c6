package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flowbuild/internal/execution"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/ux"
)

func newGraphCmd() *cobra.Command {
	var (
		mermaid   bool
		lifecycle bool
		job       string
	)

	c := &cobra.Command{
		Use:   "graph <phase> [target...]",
		Short: "Print the execution order of a phase",
		Long: `Resolve the dependencies of the selected targets for one phase and print
the order they would run in. With --mermaid a Mermaid flowchart is printed
instead, edges pointing from producer to consumer.`,
		Example: `  flowbuild graph build
  flowbuild graph destroy --mermaid
  flowbuild graph build --job nightly --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := phase.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid argument %q: %w", args[0], err)
			}

			s, err := newSession(cmd, nil)
			if err != nil {
				return err
			}
			proj, err := s.OpenProject()
			if err != nil {
				return err
			}
			targets, err := proj.Select(args[1:], job)
			if err != nil {
				return err
			}

			phases := []phase.Phase{p}
			if lifecycle {
				phases = phase.Expand(p, false)
			}
			graphs, err := execution.Plan(targets, phases)
			if err != nil {
				return planError(err)
			}

			if mermaid {
				for _, g := range graphs {
					if err := g.WriteMermaid(s.Stdout); err != nil {
						return err
					}
				}
				return nil
			}

			f, err := s.Formatter()
			if err != nil {
				return err
			}
			return f.Format(ux.NewPlanView(graphs))
		},
	}

	c.Flags().BoolVar(&mermaid, "mermaid", false, "print a Mermaid flowchart")
	c.Flags().BoolVar(&lifecycle, "lifecycle", false, "include the lifecycle phases before <phase>")
	c.Flags().StringVarP(&job, "job", "j", "", "restrict to the targets of a job")

	return c
}
