package cmd

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flowbuild/internal/checkpoint"
	"github.com/felixgeelhaar/flowbuild/internal/config"
	"github.com/felixgeelhaar/flowbuild/internal/execution"
	"github.com/felixgeelhaar/flowbuild/internal/metrics"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/progress"
	"github.com/felixgeelhaar/flowbuild/internal/ux"
)

type phaseOptions struct {
	force       bool
	keepGoing   bool
	noLifecycle bool
	dryRun      bool
	job         string
	parallelism int
	metricsFile string
}

var phaseDescriptions = map[phase.Phase]string{
	phase.Create:   "Create the containers targets write into (directories, schemas, tables)",
	phase.Migrate:  "Migrate existing containers to the declared layout",
	phase.Build:    "Produce the data of dirty targets",
	phase.Verify:   "Check that the produced data is present and valid",
	phase.Truncate: "Remove the data of targets, keeping their containers",
	phase.Destroy:  "Remove targets together with their containers",
}

func newPhaseCmd(p phase.Phase) *cobra.Command {
	opts := &phaseOptions{}

	long := phaseDescriptions[p] + "."
	if !p.IsTeardown() {
		long += fmt.Sprintf("\n\nRuns the phases %s in order unless --no-lifecycle is given.",
			strings.Join(phaseNames(phase.Expand(p, false)), ", "))
	} else {
		long += "\n\nConsumers are processed before the targets they depend on."
	}

	c := &cobra.Command{
		Use:   p.String() + " [target...]",
		Short: phaseDescriptions[p],
		Long:  long,
		Example: fmt.Sprintf(`  flowbuild %[1]s
  flowbuild %[1]s orders report --force
  flowbuild %[1]s --job nightly --keep-going
  flowbuild %[1]s -nl --dry-run`, p),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, args, p, opts)
		},
	}

	flags := c.Flags()
	flags.BoolVarP(&opts.force, "force", "f", false, "run targets even when they are not dirty")
	flags.BoolVarP(&opts.keepGoing, "keep-going", "k", false, "continue with unaffected targets after a failure")
	flags.BoolVar(&opts.noLifecycle, "no-lifecycle", false, "run only this phase (also -nl)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the execution plan without running anything")
	flags.StringVarP(&opts.job, "job", "j", "", "run the targets of a job")
	flags.IntVar(&opts.parallelism, "parallelism", 0, "number of targets run concurrently")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")

	return c
}

func runPhase(cmd *cobra.Command, args []string, p phase.Phase, opts *phaseOptions) error {
	s, err := newSession(cmd, func(o *config.Overrides) {
		flags := cmd.Flags()
		if flags.Changed("keep-going") {
			o.KeepGoing = &opts.keepGoing
		}
		if flags.Changed("parallelism") {
			o.Parallelism = &opts.parallelism
		}
		if flags.Changed("metrics-file") {
			o.MetricsFile = &opts.metricsFile
		}
	})
	if err != nil {
		return err
	}

	proj, err := s.OpenProject()
	if err != nil {
		return err
	}
	targets, err := proj.Select(args, opts.job)
	if err != nil {
		return err
	}
	phases := phase.Expand(p, opts.noLifecycle)

	if opts.dryRun {
		graphs, err := execution.Plan(targets, phases)
		if err != nil {
			return planError(err)
		}
		f, err := s.Formatter()
		if err != nil {
			return err
		}
		return f.Format(ux.NewPlanView(graphs))
	}

	cfg := s.Config
	listeners := []execution.Listener{execution.NewLogListener(s.Logger)}

	consoleOut := s.Stdout
	if !s.TextOutput() {
		consoleOut = s.Stderr
	}
	listeners = append(listeners, progress.NewConsole(progress.Config{
		Writer:  consoleOut,
		NoColor: cfg.Output.NoColor,
	}))

	var history *checkpoint.Manager
	var recorder *checkpoint.Recorder
	if cfg.History.Enabled {
		history = s.History()
		recorder = checkpoint.NewRecorder(history,
			checkpoint.WithProject(proj.Name, proj.Fingerprint()),
			checkpoint.WithLogger(s.Logger))
		listeners = append(listeners, recorder)
	}

	reg, m := metrics.NewRegistry()
	if cfg.Metrics.Textfile != "" {
		listeners = append(listeners, metrics.NewListener(m))
	}

	runner := execution.NewRunner(
		execution.WithParallelism(cfg.Execution.Parallelism),
		execution.WithListener(listeners...),
		execution.WithLogger(s.Logger),
	)

	result, err := runner.Execute(cmd.Context(), execution.Request{
		Targets:   targets,
		Phases:    phases,
		Force:     opts.force,
		KeepGoing: cfg.Execution.KeepGoing,
	})
	if err != nil {
		err = planError(err)
		s.Logger.LogErrorContext(cmd.Context(), err)
		if cfg.Metrics.Textfile != "" {
			m.RecordError(err, "plan")
			writeMetrics(s, reg)
		}
		return err
	}

	if !s.TextOutput() {
		f, ferr := s.Formatter()
		if ferr != nil {
			return ferr
		}
		if ferr := f.Format(ux.NewRunView(proj.Name, result)); ferr != nil {
			return ferr
		}
	}

	if history != nil && cfg.History.Keep > 0 {
		if removed, perr := history.Prune(cfg.History.Keep); perr != nil {
			s.Logger.WithError(perr).Warn("failed to prune run history")
		} else if removed > 0 {
			s.Logger.Debug("pruned run history", "removed", removed)
		}
	}

	runErr := runError(result)
	if cfg.Metrics.Textfile != "" {
		m.RecordError(runErr, "run")
		writeMetrics(s, reg)
	}
	return runErr
}

func writeMetrics(s *Session, g prometheus.Gatherer) {
	path := s.Config.Metrics.Textfile
	if err := metrics.WriteTextfile(path, g); err != nil {
		s.Logger.WithError(err).Warn("failed to write metrics", "path", path)
		return
	}
	s.Logger.Debug("metrics written", "path", path)
}

func phaseNames(phases []phase.Phase) []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.String()
	}
	return names
}
