package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sherine-k/rmsim/pkg/chart"
	"github.com/sherine-k/rmsim/pkg/config"
	"github.com/sherine-k/rmsim/pkg/simulation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	configFile    string
	traceFile     string
	statsFile     string
	outputFormat  string
	logLevel      string
	showChart     bool
	showTimeline  bool
	timelineLimit int
	dumpTimeline  bool
)

var rootCmd = &cobra.Command{
	Use:   "rmsim",
	Short: "Rate-Monotonic Scheduling simulator",
	Long: `A CLI tool that simulates rate-monotonic scheduling of periodic tasks
on a single processor.

This tool reads a configuration file containing periodic tasks, simulates
their execution in logical time with static priorities (shorter period wins),
and reports the execution trace, deadline misses and per-task waiting times.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	RunE:              runSimulation,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "tasks.yaml", "Path to task configuration file (.yaml or plain parameter file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&traceFile, "trace-file", "", "Write the execution trace to this file instead of stdout")
	rootCmd.Flags().StringVar(&statsFile, "stats-file", "", "Write the final statistics to this file instead of stdout")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", formatText, "Output format (text or json)")
	rootCmd.Flags().BoolVar(&showChart, "chart", true, "Show the processor schedule chart")
	rootCmd.Flags().BoolVarP(&showTimeline, "timeline", "t", false, "Show detailed timeline of events")
	rootCmd.Flags().IntVarP(&timelineLimit, "timeline-limit", "l", 50, "Limit number of timeline events to display")
	rootCmd.Flags().BoolVar(&dumpTimeline, "dump-timeline", false, "Print the precomputed arrival timeline")
}

// loadSimulation reads the configuration and runs the simulation
func loadSimulation() (*simulation.Simulator, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build task catalog")
	}

	log.WithFields(logrus.Fields{
		"config":      configFile,
		"tasks":       catalog.Len(),
		"utilization": fmt.Sprintf("%.3f", catalog.Utilization()),
	}).Info("loaded configuration")

	sim := simulation.NewSimulator(catalog, simulation.WithLogger(log))
	if err := sim.Run(); err != nil {
		return nil, errors.Wrap(err, "simulation failed")
	}
	return sim, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	if outputFormat != formatText && outputFormat != formatJSON {
		return errors.Errorf("unknown output format %q (must be %q or %q)", outputFormat, formatText, formatJSON)
	}

	sim, err := loadSimulation()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == formatJSON {
		return writeJSON(out, sim)
	}

	chartGen := chart.NewGenerator()
	report := sim.GetReport()

	if dumpTimeline {
		fmt.Fprintln(out, chartGen.GenerateTimelineDump(sim.Timeline()))
	}

	if err := writeTo(traceFile, out, chartGen.GenerateTrace(sim.GetEvents())); err != nil {
		return err
	}
	if err := writeTo(statsFile, out, chartGen.GenerateStats(report)); err != nil {
		return err
	}

	if showChart {
		fmt.Fprintln(out, chartGen.GenerateGanttChart(sim.Catalog().Tasks(), sim.GetSegments(), sim.GetEvents(), report.Horizon))
	}

	fmt.Fprintln(out, chartGen.GenerateEventSummary(sim.GetEvents(), report))
	printWarnings(out, chartGen, sim.GetWarnings())
	printVerdict(out, report)

	if showTimeline {
		fmt.Fprintln(out, chartGen.GenerateDetailedTimeline(sim.GetEvents(), timelineLimit))
	}

	return nil
}

// writeTo writes content to the named file, or to fallback when name is empty
func writeTo(name string, fallback io.Writer, content string) error {
	if name == "" {
		_, err := fmt.Fprintln(fallback, content)
		return err
	}
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", name)
	}
	log.WithField("file", name).Info("wrote output")
	return nil
}

func writeJSON(out io.Writer, sim *simulation.Simulator) error {
	result := map[string]interface{}{
		"tasks":    sim.Catalog().Tasks(),
		"events":   sim.GetEvents(),
		"segments": sim.GetSegments(),
		"report":   sim.GetReport(),
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(result), "failed to encode results")
}
