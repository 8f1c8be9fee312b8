package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/xeonx/timeago"

	"github.com/helvethink/deployctl/pkg/schemas"
)

// Styling variables for the tabular command output
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"})

	cellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	succeededStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a9a9a9"))

	revisionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0062cc"))
)

// styledStatus colors a deploy status for terminal display.
func styledStatus(s schemas.DeployStatus) string {
	switch s {
	case schemas.DeployStatusSucceeded:
		return succeededStyle.Render(string(s))
	case schemas.DeployStatusFailed:
		return failedStyle.Render(string(s))
	case schemas.DeployStatusPending:
		return pendingStyle.Render(string(s))
	default:
		return skippedStyle.Render(string(s))
	}
}

// renderTable renders a header row followed by data rows, columns padded to
// their widest cell.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder

	for i, h := range headers {
		b.WriteString(cellStyle.Render(headerStyle.Render(padRight(h, widths[i]))))
	}

	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			b.WriteString(cellStyle.Render(padRight(cell, widths[i])))
		}

		b.WriteString("\n")
	}

	return b.String()
}

// padRight pads the rendered cell to the given display width, styling aware.
func padRight(cell string, width int) string {
	if missing := width - lipgloss.Width(cell); missing > 0 {
		return cell + strings.Repeat(" ", missing)
	}

	return cell
}

// renderEnvironmentsTable prints the registered environments in promotion
// order.
func renderEnvironmentsTable(envs []schemas.Environment) {
	rows := make([][]string, 0, len(envs))

	for _, env := range envs {
		platforms := make([]string, 0, len(env.Platforms))
		for _, p := range env.Platforms {
			platforms = append(platforms, string(p))
		}

		rows = append(rows, []string{
			strconv.Itoa(env.Rank),
			env.Name,
			env.Branch,
			strings.Join(env.Aliases, ", "),
			strings.Join(platforms, ", "),
			env.URL,
		})
	}

	fmt.Fprint(os.Stdout, renderTable([]string{"RANK", "NAME", "BRANCH", "ALIASES", "PLATFORMS", "URL"}, rows))
}

// renderRevisionRange prints the revisions a pipeline carries, oldest first.
func renderRevisionRange(rr schemas.RevisionRange) {
	if rr.Empty() {
		fmt.Fprintln(os.Stdout, "no revisions")

		return
	}

	fmt.Fprintf(os.Stdout, "%d revision(s) (%s):\n", rr.Count(), rr.Spec())

	for _, rev := range rr.Revisions {
		fmt.Fprintf(os.Stdout, "  %s %s\n", revisionStyle.Render(rev.ID), rev.Summary)
	}
}

// renderOutcomes prints the per-platform deployment outcomes.
func renderOutcomes(outcomes schemas.DeploymentOutcomes) {
	if len(outcomes) == 0 {
		return
	}

	rows := make([][]string, 0, len(outcomes))

	for _, o := range outcomes {
		url := ""
		if o.URL != nil {
			url = *o.URL
		}

		rows = append(rows, []string{
			string(o.Platform),
			styledStatus(o.Status),
			o.Revision,
			url,
			o.Detail,
		})
	}

	fmt.Fprint(os.Stdout, renderTable([]string{"PLATFORM", "STATUS", "REVISION", "URL", "DETAIL"}, rows))
}

// renderHistory prints the journaled outcomes of one environment, most recent
// first, with human friendly timestamps.
func renderHistory(outcomes schemas.DeploymentOutcomes) {
	rows := make([][]string, 0, len(outcomes))

	for _, o := range outcomes {
		rows = append(rows, []string{
			timeago.English.Format(o.CreatedAt),
			string(o.Platform),
			styledStatus(o.Status),
			o.Revision,
			o.Detail,
		})
	}

	fmt.Fprint(os.Stdout, renderTable([]string{"WHEN", "PLATFORM", "STATUS", "REVISION", "DETAIL"}, rows))
}
