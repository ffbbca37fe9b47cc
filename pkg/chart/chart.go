package chart

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/sherine-k/rmsim/pkg/simulation"
)

const (
	chartWidth = 80
	idleLabel  = "idle"
	// NoAverage is printed for tasks that never completed an instance
	NoAverage = "n/a (no successful completions)"
)

// Generator generates ASCII charts and text reports
type Generator struct {
	width int
}

// NewGenerator creates a new chart generator
func NewGenerator() *Generator {
	return &Generator{
		width: chartWidth,
	}
}

// GenerateGanttChart draws one row per task plus an idle row over [0, horizon).
// When the horizon is wider than the chart, every column samples a time range.
func (g *Generator) GenerateGanttChart(tasks []*simulation.Task, segments []simulation.Segment, events []simulation.Event, horizon int) string {
	if horizon <= 0 || len(segments) == 0 {
		return "No data to display"
	}

	var sb strings.Builder

	// Header
	sb.WriteString("\n")
	sb.WriteString("Processor Schedule\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")

	labelWidth := len(idleLabel)
	for _, t := range tasks {
		if len(t.Name) > labelWidth {
			labelWidth = len(t.Name)
		}
	}

	cols := g.width - labelWidth - 3
	if cols < 1 {
		cols = 1
	}
	if cols > horizon {
		cols = horizon
	}
	span := func(x int) (int, int) {
		return scale(x, horizon, cols), scale(x+1, horizon, cols)
	}
	column := func(t int) int {
		x := scale(t, cols, horizon)
		if x >= cols {
			x = cols - 1
		}
		return x
	}

	misses := make(map[string]map[int]bool)
	for _, e := range events {
		if e.Type != simulation.EventTypeDeadlineMiss {
			continue
		}
		if misses[e.Task] == nil {
			misses[e.Task] = make(map[int]bool)
		}
		misses[e.Task][column(e.Time)] = true
	}

	row := func(label, name, mark string) {
		sb.WriteString(fmt.Sprintf("%-*s |", labelWidth, label))
		for x := 0; x < cols; x++ {
			if misses[name][x] {
				sb.WriteString("!")
				continue
			}
			from, to := span(x)
			cell := " "
			if covers(segments, name, from, to) {
				cell = mark
			}
			sb.WriteString(cell)
		}
		sb.WriteString("\n")
	}

	for _, t := range tasks {
		row(t.Name, t.Name, "█")
	}
	row(idleLabel, "", "░")

	// X-axis
	sb.WriteString(strings.Repeat(" ", labelWidth+1))
	sb.WriteString("+")
	sb.WriteString(strings.Repeat("-", cols))
	sb.WriteString("\n")

	labelLine := []rune(strings.Repeat(" ", cols+8))
	for x := 0; x < cols; x += 10 {
		from, _ := span(x)
		marker := fmt.Sprintf("%d", from)
		for i, ch := range marker {
			if x+i < len(labelLine) {
				labelLine[x+i] = ch
			}
		}
	}
	sb.WriteString(strings.Repeat(" ", labelWidth+2))
	sb.WriteString(strings.TrimRight(string(labelLine), " "))
	sb.WriteString("\n")

	// Legend
	sb.WriteString("\n")
	sb.WriteString("Legend:\n")
	sb.WriteString("    █ - Task executing\n")
	sb.WriteString("    ░ - Processor idle\n")
	sb.WriteString("    ! - Deadline missed\n")
	if cols < horizon {
		sb.WriteString(fmt.Sprintf("  Each column covers about %d time units\n", (horizon+cols-1)/cols))
	}
	sb.WriteString("\n")

	return sb.String()
}

// covers reports whether the named task (or idleness, for "") holds the
// processor at any point in [from, to). Segments are sorted and disjoint.
func covers(segments []simulation.Segment, name string, from, to int) bool {
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].End > from
	})
	for ; i < len(segments) && segments[i].Start < to; i++ {
		if segments[i].Task == name {
			return true
		}
	}
	return false
}

// scale returns a*b/c for non-negative operands without overflowing the product
func scale(a, b, c int) int {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	q, _ := bits.Div64(hi, lo, uint64(c))
	return int(q)
}

// GenerateTrace renders one line per trace event
func (g *Generator) GenerateTrace(events []simulation.Event) string {
	var sb strings.Builder
	for _, event := range events {
		sb.WriteString(event.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

// GenerateStats renders the final statistics of a run
func (g *Generator) GenerateStats(report *simulation.Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total instance count : %d\n", report.TotalInstances))
	sb.WriteString(fmt.Sprintf("Total successful instance count : %d\n", report.TotalSuccessful))
	sb.WriteString(fmt.Sprintf("Total deadline missed instance count : %d\n", report.TotalDeadlineMisses))
	for _, tr := range report.Tasks {
		sb.WriteString(fmt.Sprintf("%s average waiting time : %s\n", tr.Name, FormatAverage(tr)))
	}

	return sb.String()
}

// GenerateEventSummary generates a summary of events and schedulability
func (g *Generator) GenerateEventSummary(events []simulation.Event, report *simulation.Report) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("Event Summary\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")

	// Group events by type
	eventsByType := make(map[simulation.EventType]int)
	for _, event := range events {
		eventsByType[event.Type]++
	}

	sb.WriteString(fmt.Sprintf("Total Events: %d\n", len(events)))
	sb.WriteString(fmt.Sprintf("  - Arrivals: %d\n", eventsByType[simulation.EventTypeArrival]))
	sb.WriteString(fmt.Sprintf("  - Starts: %d\n", eventsByType[simulation.EventTypeStart]))
	sb.WriteString(fmt.Sprintf("  - Resumes: %d\n", eventsByType[simulation.EventTypeResume]))
	sb.WriteString(fmt.Sprintf("  - Preemptions: %d\n", eventsByType[simulation.EventTypePreempt]))
	sb.WriteString(fmt.Sprintf("  - Completions: %d\n", eventsByType[simulation.EventTypeFinish]))
	sb.WriteString(fmt.Sprintf("  - Idle Intervals: %d\n", eventsByType[simulation.EventTypeIdle]))
	sb.WriteString(fmt.Sprintf("  - Deadline Misses: %d\n", eventsByType[simulation.EventTypeDeadlineMiss]))
	sb.WriteString("\n")

	if report != nil {
		sb.WriteString(fmt.Sprintf("Utilization: %.3f (Liu-Layland bound %.3f)\n", report.Utilization, report.LiuLaylandBound))
		sb.WriteString(fmt.Sprintf("Processor busy %d / idle %d of %d time units\n", report.BusyTime, report.IdleTime, report.Horizon))
		sb.WriteString("\n")
	}

	return sb.String()
}

// GenerateWarnings generates a list of warnings
func (g *Generator) GenerateWarnings(warnings []simulation.Event) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("Warnings\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")

	if len(warnings) == 0 {
		sb.WriteString("No warnings!\n")
		return sb.String()
	}

	for _, warning := range warnings {
		sb.WriteString(fmt.Sprintf("[t=%d] %s\n", warning.Time, warning.Message))
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total Warnings: %d\n", len(warnings)))
	sb.WriteString("\n")

	return sb.String()
}

// GenerateDetailedTimeline generates a detailed timeline of events
func (g *Generator) GenerateDetailedTimeline(events []simulation.Event, limit int) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("Detailed Timeline")
	if limit > 0 && limit < len(events) {
		sb.WriteString(fmt.Sprintf(" (showing first %d events)", limit))
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")

	displayCount := len(events)
	if limit > 0 && limit < displayCount {
		displayCount = limit
	}

	for i := 0; i < displayCount; i++ {
		event := events[i]

		typeIcon := " "
		switch event.Type {
		case simulation.EventTypeArrival:
			typeIcon = "+"
		case simulation.EventTypeStart:
			typeIcon = ">"
		case simulation.EventTypeResume:
			typeIcon = "R"
		case simulation.EventTypePreempt:
			typeIcon = "P"
		case simulation.EventTypeFinish:
			typeIcon = "-"
		case simulation.EventTypeIdle:
			typeIcon = "."
		case simulation.EventTypeDeadlineMiss:
			typeIcon = "!"
		}

		sb.WriteString(fmt.Sprintf("[%5d] %s %s\n", event.Time, typeIcon, event.Message))
	}

	if limit > 0 && limit < len(events) {
		sb.WriteString(fmt.Sprintf("\n... and %d more events\n", len(events)-limit))
	}

	sb.WriteString("\n")

	return sb.String()
}

// GenerateTimelineDump lists every timeline entry as
// "time : task instance remaining joined instances"
func (g *Generator) GenerateTimelineDump(tl *simulation.Timeline) string {
	var sb strings.Builder

	for _, at := range tl.Times() {
		for _, e := range tl.At(at) {
			switch entry := e.(type) {
			case *simulation.Arrival:
				sb.WriteString(fmt.Sprintf("%d : %s %d %d %d %d\n",
					at, entry.Task.Name, entry.Instance, entry.Task.ProcessingTime, entry.At, entry.Task.Instances))
			case *simulation.EndOfLifeCheck:
				sb.WriteString(fmt.Sprintf("%d : %s end-of-life check after instance %d\n",
					at, entry.Task.Name, entry.LastInstance))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatAverage formats a task's average waiting time
func FormatAverage(tr simulation.TaskReport) string {
	avg, ok := tr.AverageWaiting()
	if !ok {
		return NoAverage
	}
	return fmt.Sprintf("%.2f", avg)
}
