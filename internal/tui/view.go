package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/prpulse/prpulse/internal/domain"
)

func renderView(snap Snapshot, activeTab int, selected int) string {
	var b strings.Builder

	header := fmt.Sprintf("prpulse │ %s │ %d actionable", snap.Viewer, snap.BadgeCount)
	if !snap.Connected {
		header += " │ " + snap.StatusText
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	// Tab bar
	var tabsLine []string
	for i, tab := range snap.Tabs {
		label := fmt.Sprintf("%d:%s (%d)", i+1, tab.Tab.Title(), len(tab.Items))
		if tab.Loading {
			label += " …"
		}
		if i == activeTab {
			tabsLine = append(tabsLine, tabActiveStyle.Render(label))
		} else {
			tabsLine = append(tabsLine, tabInactiveStyle.Render(label))
		}
	}
	b.WriteString(" " + strings.Join(tabsLine, "  "))
	b.WriteString("\n\n")

	if activeTab >= 0 && activeTab < len(snap.Tabs) {
		b.WriteString(renderList(snap.Tabs[activeTab], selected))
	}

	// Digest line
	if snap.Digest.Timeframe != "Off" {
		digest := fmt.Sprintf("Digest (%s): %d opened · %d reviewed",
			snap.Digest.Timeframe, snap.Digest.Opened, snap.Digest.Reviewed)
		b.WriteString("\n")
		b.WriteString(metaStyle.Render(" " + digest))
		b.WriteString("\n")
	}

	// Error surfaces
	if snap.StorageError != "" {
		b.WriteString(errorStyle.Render(" disk: " + snap.StorageError))
		b.WriteString("\n")
	}
	if !snap.Connected && len(snap.ConnectionLog) > 0 {
		b.WriteString(errorStyle.Render(" " + snap.ConnectionLog[len(snap.ConnectionLog)-1]))
		b.WriteString("\n")
	}

	filters := filterSummary(snap.Filter)
	footer := fmt.Sprintf("last refresh: %s%s │ r:refresh m:more t:todo n:n/a c:clear s:snooze a:actionable h:hide-reviewed e:clear-errors q:quit",
		lastRefreshLabel(snap.LastRefreshAt), filters)
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func renderList(tab TabState, selected int) string {
	if len(tab.Items) == 0 {
		if tab.Loading {
			return emptyStyle.Render("  (loading…)") + "\n"
		}
		return emptyStyle.Render("  (nothing here)") + "\n"
	}

	var b strings.Builder
	for i, item := range tab.Items {
		b.WriteString(renderRow(item, i == selected))
	}
	if tab.HasNextPage {
		b.WriteString(emptyStyle.Render("  ↓ more available (m)"))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(item domain.Presentation, isSelected bool) string {
	pr := item.PullRequest
	status := item.Status

	title := pr.Title
	if runewidth.StringWidth(title) > 56 {
		title = runewidth.Truncate(title, 53, "...")
	}

	marker := " "
	if status.IsActionable {
		marker = "●"
	}

	line := fmt.Sprintf(" %s %s #%d %s", marker, readinessIcon(status.Readiness), pr.Number, title)
	if isSelected {
		line = selectedRowStyle.Render(line)
	} else {
		line = rowStyle.Render(line)
	}

	meta := fmt.Sprintf("      %s · %s · ✔%d ✘%d",
		pr.Repo,
		readinessLabel(status.Readiness),
		status.Approvals,
		status.ChangesRequested)
	metaLine := lipgloss.NewStyle().Foreground(readinessColor(status.Readiness)).Render(meta)

	var extras []string
	if text := item.BadgeText(); text != "" {
		extras = append(extras, text)
	}
	if label := overrideLabel(pr.Override); label != "" {
		extras = append(extras, label)
	}
	if pr.Override.IsSnoozed(time.Now()) {
		extras = append(extras, "snoozed until "+pr.Override.SnoozedUntil.Format("Jan 2 15:04"))
	}

	out := line + "\n" + metaLine
	if len(extras) > 0 {
		out += badgeStyle.Render("  [" + strings.Join(extras, " · ") + "]")
	}
	return out + "\n"
}

func filterSummary(f domain.FilterState) string {
	var active []string
	if f.ActionableOnly {
		active = append(active, "actionable")
	}
	if f.HideReviewed {
		active = append(active, "hide-reviewed")
	}
	if f.HideSnoozed {
		active = append(active, "hide-snoozed")
	}
	if f.HideNotApplicable {
		active = append(active, "hide-n/a")
	}
	if len(active) == 0 {
		return ""
	}
	return " │ filters: " + strings.Join(active, ",")
}

func lastRefreshLabel(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("15:04:05")
}
