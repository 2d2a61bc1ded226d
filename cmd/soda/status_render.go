package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"sodareplay/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderStatus prints the daemon (or local) status report.
func renderStatus(out io.Writer, status api.DaemonStatus, remote bool) {
	colorize := shouldColorize(out)
	lines := renderSectionHeader("System", colorize)
	if remote {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	lines = append(lines,
		renderStatusLine("Export directory", statusInfo, status.ExportDir, colorize),
		renderStatusLine("Ledger", statusInfo, status.LedgerPath, colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	if len(status.Checks) == 0 {
		lines = append(lines, renderStatusLine("Preflight", statusInfo, "No checks reported", colorize))
	}
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Ledger", colorize)...)
	runKind := statusOK
	if status.Ledger.FailedRuns > 0 {
		runKind = statusWarn
	}
	lines = append(lines,
		renderStatusLine("Runs", runKind, fmt.Sprintf("%d recorded, %d with failures", status.Ledger.Runs, status.Ledger.FailedRuns), colorize),
		renderStatusLine("Captures", statusInfo, strconv.Itoa(status.Ledger.Captures), colorize),
	)
	if c := status.LatestCapture; c != nil {
		lines = append(lines, renderStatusLine("Latest capture", statusInfo,
			fmt.Sprintf("%s (%d frames, %s)", c.Path, c.Frames, c.ReceivedAt), colorize))
	}
	if s := status.Scene; s != nil {
		if s.Error != "" {
			lines = append(lines, renderStatusLine("Scene", statusError, s.Error, colorize))
		} else {
			lines = append(lines, renderStatusLine("Scene", statusOK,
				fmt.Sprintf("frames %d-%d, %d players (built %s)", s.FrameStart, s.FrameEnd, s.Players, s.BuiltAt), colorize))
		}
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func renderAssets(out io.Writer, resp *api.AssetsResponse) {
	if resp == nil {
		return
	}
	s := resp.Summary
	fmt.Fprintf(out, "Run %s: %s\n", resp.RunID, resp.Status)
	fmt.Fprintln(out, renderTable(
		[]string{"Total", "Fetched", "Skipped", "Reused", "Written", "Failed", "Invalid", "Cancelled"},
		[][]string{{
			strconv.Itoa(s.Total), strconv.Itoa(s.Fetched), strconv.Itoa(s.Skipped), strconv.Itoa(s.Reused),
			strconv.Itoa(s.Written), strconv.Itoa(s.Failed), strconv.Itoa(s.Invalid), strconv.Itoa(s.Cancelled),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	if len(resp.Errors) == 0 {
		return
	}
	errRows := make([][]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		section := e.Section
		if e.Character != "" {
			section += "/" + e.Character
		}
		errRows = append(errRows, []string{section, fallback(e.Key, "-"), e.Outcome, e.Message})
	}
	fmt.Fprintln(out, renderTable([]string{"Section", "Key", "Outcome", "Error"}, errRows, nil))
}

func renderRunsTable(runs []api.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		s := run.Summary
		rows = append(rows, []string{
			run.ID,
			run.Source,
			run.StartedAt,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Failed + s.Invalid + s.Cancelled),
			fallback(run.ParentID, "-"),
		})
	}
	return renderTable(
		[]string{"ID", "Source", "Started", "Total", "Problems", "Parent"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func renderRun(out io.Writer, resp *api.RunResponse) {
	if resp == nil {
		return
	}
	fmt.Fprintln(out, renderRunsTable([]api.Run{resp.Run}))
	if len(resp.Results) == 0 {
		return
	}
	rows := make([][]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		section := r.Section
		if r.Character != "" {
			section += "/" + r.Character
		}
		detail := r.Path
		if r.Error != "" {
			detail = r.Error
		}
		rows = append(rows, []string{section, fallback(r.Key, "-"), r.Outcome, detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Section", "Key", "Outcome", "Detail"}, rows, nil))
}

func renderScene(out io.Writer, s api.SceneSummary) {
	rows := [][]string{
		{"Frames", fmt.Sprintf("%d-%d", s.FrameStart, s.FrameEnd)},
		{"Players", strconv.Itoa(s.Players)},
		{"GUI elements", strconv.Itoa(s.GUI)},
		{"Static meshes", strconv.Itoa(s.StaticMeshes)},
		{"Characters", strconv.Itoa(s.Characters)},
		{"Materials", strconv.Itoa(s.Materials)},
		{"Image planes", strconv.Itoa(s.ImagePlanes)},
		{"Speakers", strconv.Itoa(s.Speakers)},
		{"Animations", strconv.Itoa(s.Animations)},
	}
	fmt.Fprintln(out, renderTable([]string{"Entity", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
