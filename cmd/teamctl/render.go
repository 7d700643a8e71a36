package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/term"

	domain "agentteam/internal/domain/agentteam"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

const defaultWidth = 120

// terminalWidth reports the width of out when it is a terminal.
func terminalWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 3 || len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

func statusText(status domain.Status) string {
	switch status {
	case domain.StatusRunning:
		return green(string(status))
	case domain.StatusQueued:
		return yellow(string(status))
	case domain.StatusFailed:
		return red(string(status))
	case domain.StatusCompleted:
		return cyan(string(status))
	case domain.StatusCancelled:
		return gray(string(status))
	}
	return string(status)
}

func newTable(out io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, bold(strings.Join(headers, "\t")))
	return tw
}

func writeJSON(out io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, werr := out.Write(raw)
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func containsAny(s string, parts ...string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
