// Package progress renders a run on the console as it happens.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/felixgeelhaar/flowbuild/internal/execution"
	"github.com/felixgeelhaar/flowbuild/internal/phase"
	"github.com/felixgeelhaar/flowbuild/internal/target"
)

// Config holds configuration for the console.
type Config struct {
	Writer io.Writer

	// NoColor disables styling.
	NoColor bool

	// IsCI prints a line when each target starts, and disables styling.
	// Detected from the environment when false.
	IsCI bool

	// Quiet hides targets that were skipped as up to date.
	Quiet bool
}

type styles struct {
	title   lipgloss.Style
	phase   lipgloss.Style
	success lipgloss.Style
	skipped lipgloss.Style
	failed  lipgloss.Style
	aborted lipgloss.Style
	running lipgloss.Style
	faint   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		phase:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
		skipped: r.NewStyle().Foreground(lipgloss.Color("241")),
		failed:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		aborted: r.NewStyle().Foreground(lipgloss.Color("214")),
		running: r.NewStyle().Foreground(lipgloss.Color("39")),
		faint:   r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Console is an execution.Listener printing one line per finished target
// and a summary at the end of the run.
type Console struct {
	writer io.Writer
	styles styles
	isCI   bool
	quiet  bool

	width int
}

// NewConsole creates a console listener.
func NewConsole(cfg Config) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	if !cfg.IsCI {
		cfg.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}

	r := lipgloss.NewRenderer(cfg.Writer)
	if cfg.NoColor || cfg.IsCI {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Console{
		writer: cfg.Writer,
		styles: newStyles(r),
		isCI:   cfg.IsCI,
		quiet:  cfg.Quiet,
	}
}

func (c *Console) RunStarted(_ context.Context, info execution.RunInfo) {
	names := make([]string, len(info.Phases))
	for i, p := range info.Phases {
		names[i] = p.String()
	}

	var flags []string
	if info.Force {
		flags = append(flags, "force")
	}
	if info.KeepGoing {
		flags = append(flags, "keep-going")
	}
	if info.Parallelism > 1 {
		flags = append(flags, fmt.Sprintf("parallelism=%d", info.Parallelism))
	}

	line := fmt.Sprintf("%s %s (%d targets)",
		c.styles.title.Render("flowbuild"),
		strings.Join(names, " → "),
		info.Targets)
	if len(flags) > 0 {
		line += " " + c.styles.faint.Render("["+strings.Join(flags, ", ")+"]")
	}
	fmt.Fprintln(c.writer, line)
	fmt.Fprintln(c.writer, c.styles.faint.Render("run "+info.RunID))
}

func (c *Console) PhaseStarted(_ context.Context, p phase.Phase, g *execution.Graph) {
	c.width = 0
	for _, t := range g.Order() {
		if n := len(t.Identifier().String()); n > c.width {
			c.width = n
		}
	}
	fmt.Fprintf(c.writer, "\n%s %s\n",
		c.styles.phase.Render(strings.ToUpper(p.String())),
		c.styles.faint.Render(fmt.Sprintf("(%d targets)", g.Len())))
}

func (c *Console) TargetStarted(_ context.Context, id target.Identifier, _ phase.Phase) {
	if !c.isCI {
		return
	}
	fmt.Fprintf(c.writer, "  %s %s\n", c.styles.running.Render("▶"), id)
}

func (c *Console) TargetFinished(_ context.Context, rec execution.Record) {
	if c.quiet && rec.Status == execution.StatusSkipped {
		return
	}

	symbol, style := c.symbol(rec.Status)
	name := fmt.Sprintf("%-*s", c.width, rec.Target.String())

	var detail string
	switch rec.Status {
	case execution.StatusSuccess:
		detail = formatDuration(rec.Duration)
		if rec.Forced {
			detail += " (forced)"
		}
	case execution.StatusSkipped:
		detail = "up to date"
	case execution.StatusFailed, execution.StatusAborted:
		if rec.Err != nil {
			detail = firstLine(rec.Err.Error())
		}
	}

	fmt.Fprintf(c.writer, "  %s %s  %s\n", style.Render(symbol), name, c.styles.faint.Render(detail))
}

func (c *Console) PhaseFinished(context.Context, phase.Phase, execution.Status) {}

func (c *Console) RunFinished(_ context.Context, result *execution.Result) {
	counts := result.Counts()
	status := result.Status()
	_, style := c.symbol(status)

	fmt.Fprintln(c.writer)
	fmt.Fprintf(c.writer, "%s in %s: %d succeeded, %d skipped, %d failed, %d aborted\n",
		style.Render(strings.ToUpper(string(status))),
		formatDuration(result.Duration()),
		counts[execution.StatusSuccess],
		counts[execution.StatusSkipped],
		counts[execution.StatusFailed],
		counts[execution.StatusAborted])

	failures := result.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(c.writer)
	fmt.Fprintln(c.writer, c.styles.failed.Render("Failed targets:"))
	for _, rec := range failures {
		fmt.Fprintf(c.writer, "  %s %s [%s]", c.styles.failed.Render("✗"), rec.Target, rec.Phase)
		if rec.Err != nil {
			fmt.Fprintf(c.writer, " - %s", rec.Err)
		}
		fmt.Fprintln(c.writer)
	}
}

func (c *Console) symbol(s execution.Status) (string, lipgloss.Style) {
	switch s {
	case execution.StatusSuccess:
		return "✓", c.styles.success
	case execution.StatusSkipped:
		return "⊘", c.styles.skipped
	case execution.StatusFailed:
		return "✗", c.styles.failed
	case execution.StatusAborted:
		return "■", c.styles.aborted
	default:
		return "⟲", c.styles.running
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// Ensure Console satisfies the listener contract.
var _ execution.Listener = (*Console)(nil)
