package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(0, 1)
	boxLabelSize = 10
)

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptConfirm asks the user for confirmation and returns true if they confirm.
// Without a terminal on stdin there is nobody to ask and it returns true.
func promptConfirm(in io.Reader, out io.Writer, prompt string) bool {
	if !stdinIsTerminal() {
		return true
	}

	_, _ = fmt.Fprint(out, prompt)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}

	response := strings.TrimSpace(scanner.Text())

	return response == "y" || response == "Y"
}

// padRight pads s with spaces to length
func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}

	return s + strings.Repeat(" ", length-len(s))
}

// truncateString truncates a string to the specified length with ellipsis
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	if maxLen <= 3 {
		return s[:maxLen]
	}

	return s[:maxLen-3] + "..."
}

// printInfoBox prints a bordered box with a title and key-value pairs in order
func printInfoBox(w io.Writer, title string, items map[string]string, order []string) {
	lines := []string{headerStyle.Render(title)}

	for _, key := range order {
		if val, ok := items[key]; ok {
			lines = append(lines, fmt.Sprintf("%s %s", subtleStyle.Render(padRight(key+":", boxLabelSize)), val))
		}
	}

	_, _ = fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

// printEmptyResult prints a "no results" message with a create hint
func printEmptyResult(w io.Writer, resourceType, createCmd string) {
	_, _ = fmt.Fprintf(w, "No %s found.\n", resourceType)
	_, _ = fmt.Fprintf(w, "Create one with: %s\n", createCmd)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// formatTime renders catalog timestamps for tables
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format("2006-01-02 15:04")
}
