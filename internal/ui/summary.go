package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// RenderRunSummary writes a short report of result to w. With styled it draws
// a bordered, colored box; otherwise it writes plain key: value lines that are
// stable for log scraping.
func RenderRunSummary(w io.Writer, result *pgcopy.RunResult, styled bool) {
	status := "loaded"
	symbol := SymbolCheck
	statusStyle := SuccessStyle
	if result.Skipped {
		status = "already complete, skipped"
		symbol = SymbolSkip
		statusStyle = WarningStyle
	}

	table := result.Identity.TargetTable
	if result.Table != nil {
		table = result.Table.Identifier()
	}

	rows := [][2]string{
		{"table", table},
		{"update id", result.Identity.UpdateID},
		{"status", status},
	}
	if !result.Skipped {
		rows = append(rows,
			[2]string{"rows", fmt.Sprintf("%d", result.Rows)},
			[2]string{"batches", fmt.Sprintf("%d", result.Batches)},
			[2]string{"duration", result.Duration.Round(time.Millisecond).String()},
		)
	}

	if !styled {
		for _, r := range rows {
			fmt.Fprintf(w, "%s: %s\n", r[0], r[1])
		}
		return
	}

	lines := []string{TitleStyle.Render(symbol + " pgcopy")}
	for _, r := range rows {
		value := r[1]
		if r[0] == "status" {
			value = statusStyle.Render(value)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(r[0]), value))
	}
	fmt.Fprintln(w, BoxStyle.Render(strings.Join(lines, "\n")))
}

// RenderMarkerState writes the completion state of one update id.
func RenderMarkerState(w io.Writer, updateID string, state pgcopy.MarkerState, record *pgcopy.MarkerRecord, styled bool) {
	detail := ""
	if record != nil {
		detail = fmt.Sprintf(" (table %s, inserted %s)", record.TargetTable, record.InsertedAt.Format(time.RFC3339))
	}

	if !styled {
		fmt.Fprintf(w, "%s\t%s%s\n", updateID, state, detail)
		return
	}

	var badge string
	switch state {
	case pgcopy.MarkerPresent:
		badge = SuccessStyle.Render(SymbolCheck + " " + state.String())
	case pgcopy.MarkerAbsent:
		badge = MutedStyle.Render("· " + state.String())
	default:
		badge = ErrorStyle.Render(SymbolCross + " " + state.String())
	}
	fmt.Fprintf(w, "%s  %s%s\n", badge, updateID, MutedStyle.Render(detail))
}
