package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	mperr "github.com/debemdeboas/micropub/internal/errors"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("error:"), err)
	if hint := mperr.Hint(err); hint != "" {
		fmt.Fprintln(w, hintStyle.Render("hint:"), hint)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable aligns rows under a styled header line.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	head, rest, _ := strings.Cut(buf.String(), "\n")
	if _, err := fmt.Fprintln(w, headerStyle.Render(strings.TrimRight(head, " "))); err != nil {
		return err
	}
	_, err := io.WriteString(w, rest)
	return err
}

// paginate returns the window [offset, offset+limit) of items and whether
// more items follow it. A non-positive limit means no limit.
func paginate[T any](items []T, offset, limit int) ([]T, bool) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil, false
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end], end < len(items)
}

func isTerminal(f any) bool {
	file, ok := f.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
