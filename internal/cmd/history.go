package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flowbuild/internal/ux"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs or show one run",
		Long: `Without arguments, list the recorded runs of the project, newest first.
With a run id (or a unique prefix of one), show the status of every target
of that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, nil)
			if err != nil {
				return err
			}
			f, err := s.Formatter()
			if err != nil {
				return err
			}
			history := s.History()

			if len(args) == 1 {
				st, err := history.Load(args[0])
				if err != nil {
					return err
				}
				if s.TextOutput() {
					return f.Format(ux.RunDetailView{State: st})
				}
				return f.Format(st)
			}

			states, err := history.List()
			if err != nil {
				return err
			}
			if limit > 0 && len(states) > limit {
				states = states[:limit]
			}
			return f.Format(ux.NewHistoryView(states))
		},
	}

	c.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	return c
}
