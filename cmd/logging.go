package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/pkg/errors"
	"github.com/sherine-k/rmsim/pkg/chart"
	"github.com/sherine-k/rmsim/pkg/simulation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", logLevel)
	}

	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return nil
}

// printWarnings lists deadline misses, highlighted when the terminal supports color
func printWarnings(out io.Writer, chartGen *chart.Generator, warnings []simulation.Event) {
	text := chartGen.GenerateWarnings(warnings)
	if len(warnings) == 0 {
		fmt.Fprint(out, color.Success.Sprint(text))
		return
	}
	fmt.Fprint(out, color.Warn.Sprint(text))
}

func printVerdict(out io.Writer, report *simulation.Report) {
	fmt.Fprintln(out)
	if report.Schedulable() {
		fmt.Fprintln(out, color.Success.Sprintf("Schedulable: all %d instances met their deadlines", report.TotalInstances))
	} else {
		fmt.Fprintln(out, color.Error.Sprintf("Not schedulable: %d of %d instances missed their deadlines",
			report.TotalDeadlineMisses, report.TotalInstances))
	}

	if report.BoundHolds {
		fmt.Fprintf(out, "Utilization %.3f is within the Liu-Layland bound %.3f\n", report.Utilization, report.LiuLaylandBound)
	} else {
		fmt.Fprintf(out, "Utilization %.3f exceeds the Liu-Layland bound %.3f; the bound test is inconclusive\n",
			report.Utilization, report.LiuLaylandBound)
	}
	fmt.Fprintln(out)
}
