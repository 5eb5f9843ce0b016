package dashboard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prpulse/prpulse/internal/domain"
	"github.com/prpulse/prpulse/internal/tui"
)

// Perform applies a quick triage action to one PR: persist the new override,
// patch the in-memory copies and recompute. Snoozing also arms a reminder.
func (d *Dashboard) Perform(action tui.QuickAction, prID string) {
	override := d.store.Override(prID)

	var snoozeUntil time.Time
	switch action {
	case tui.ActionMarkTodo:
		override.State = domain.OverrideTodo
		override.SnoozedUntil = nil
	case tui.ActionMarkNotApplicable:
		override.State = domain.OverrideNotApplicable
	case tui.ActionClearOverride:
		override = domain.Override{}
	case tui.ActionSnoozeTomorrow:
		snoozeUntil = d.snoozeTomorrowTarget(time.Now())
		override.State = domain.OverrideTodo
		override.SnoozedUntil = &snoozeUntil
	default:
		return
	}

	d.applyOverride(prID, override, snoozeUntil)
}

// Snooze snoozes one PR until the given time.
func (d *Dashboard) Snooze(prID string, until time.Time) {
	override := d.store.Override(prID)
	override.State = domain.OverrideTodo
	override.SnoozedUntil = &until
	d.applyOverride(prID, override, until)
}

func (d *Dashboard) applyOverride(prID string, override domain.Override, snoozeUntil time.Time) {
	if err := d.store.SetOverride(prID, override); err != nil {
		d.markStorageError(err)
		return
	}

	d.mu.Lock()
	ctx := d.ctx
	var snoozedPR *domain.PullRequest
	for _, tab := range domain.Tabs {
		state := d.lists[tab]
		for i := range state.raw {
			if state.raw[i].ID == prID {
				state.raw[i].Override = override
				if snoozedPR == nil {
					pr := state.raw[i]
					snoozedPR = &pr
				}
			}
		}
	}
	d.recomputeLocked()
	d.mu.Unlock()

	if !snoozeUntil.IsZero() && snoozedPR != nil && ctx != nil {
		d.notifier.ScheduleSnoozeReminder(ctx, *snoozedPR, snoozeUntil)
	}
}

// snoozeTomorrowTarget is tomorrow at the configured default snooze hour.
func (d *Dashboard) snoozeTomorrowTarget(now time.Time) time.Time {
	hour := d.store.Settings().SnoozeDefaultHour
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hour, 0, 0, 0, now.Location())
}

// ExportDiagnostics writes a plain-text state report next to the data dir and
// returns its path.
func (d *Dashboard) ExportDiagnostics() (string, error) {
	settings := d.store.Settings()
	snap := d.GetSnapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "PRPulse diagnostics\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "Viewer: %s\n", snap.Viewer)
	fmt.Fprintf(&b, "Settings file: %s\n", d.store.SettingsPath())
	fmt.Fprintf(&b, "Selected tab: %s\n", d.SelectedTab().Title())
	fmt.Fprintf(&b, "Refresh on launch: %t\n", settings.RefreshOnLaunch)
	fmt.Fprintf(&b, "Refresh interval: %s\n", settings.RefreshInterval)
	fmt.Fprintf(&b, "Needs-review notifications: %t\n", settings.NotifyNeedsReview)
	fmt.Fprintf(&b, "Review-request notifications: %t\n", settings.NotifyNewReviewRequests)
	fmt.Fprintf(&b, "Digest cadence: %s\n", settings.DigestCadence)
	fmt.Fprintf(&b, "Default snooze hour: %d\n", settings.SnoozeDefaultHour)

	repos := make([]string, 0, len(settings.WatchedRepositories))
	for _, sub := range settings.WatchedRepositories {
		repos = append(repos, sub.NameWithOwner)
	}
	fmt.Fprintf(&b, "Watched repositories: %s\n", strings.Join(repos, ", "))

	if snap.LastRefreshAt.IsZero() {
		fmt.Fprintf(&b, "Last refresh: never\n")
	} else {
		fmt.Fprintf(&b, "Last refresh: %s\n", snap.LastRefreshAt.Format(time.RFC3339))
	}
	for _, tab := range snap.Tabs {
		fmt.Fprintf(&b, "%s: %d shown\n", tab.Tab.Title(), len(tab.Items))
	}

	path := filepath.Join(d.store.Dir(), fmt.Sprintf("diagnostics-%d.txt", time.Now().Unix()))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("export diagnostics: %w", err)
	}
	return path, nil
}
