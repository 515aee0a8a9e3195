package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"

	"pressline/internal/batch"
	"pressline/internal/pipeline"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// renderReport prints the per-topic result table followed by a one-line
// summary.
func renderReport(out io.Writer, report *batch.Report) {
	colorize := shouldColorize(out)

	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		rows = append(rows, []string{
			res.Topic,
			statusCell(res.Status, colorize),
			res.RemotePostID,
			strconv.Itoa(res.Attempts),
			res.Reason,
		})
	}
	printTable(out, []column{
		{title: "Topic"},
		{title: "Status"},
		{title: "Post ID", numeric: true},
		{title: "Attempts", numeric: true},
		{title: "Reason"},
	}, rows)

	fmt.Fprintf(out, "Run %s: %d published, %d skipped, %d failed in %s\n",
		report.RunID,
		report.Succeeded(),
		report.Skipped(),
		report.Failed(),
		report.Duration.Round(10*time.Millisecond),
	)
}

func statusCell(status pipeline.Status, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	switch status {
	case pipeline.StatusSuccess:
		return ansiGreen + label + ansiReset
	case pipeline.StatusSkipped:
		return ansiYellow + label + ansiReset
	case pipeline.StatusFailed:
		return ansiRed + label + ansiReset
	default:
		return label
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
