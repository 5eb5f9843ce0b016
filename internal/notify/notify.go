// Package notify delivers desktop notifications with ledger-based dedup so
// the same PR is not nagged about more than once a day.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/prpulse/prpulse/internal/domain"
)

// needsReviewWindow is the suppression window for "needs review" class
// notifications per PR.
const needsReviewWindow = 24 * time.Hour

// Sender delivers one notification. Implementations must not block on user
// interaction.
type Sender interface {
	Send(ctx context.Context, title, subtitle, body string) error
}

// Ledger is the slice of the store the dispatcher needs for dedup.
type Ledger interface {
	LedgerTimestamp(key string) (time.Time, bool)
	SetLedgerTimestamp(key string, t time.Time) error
}

// Dispatcher applies settings toggles, quiet hours and ledger dedup before
// handing notifications to the sender.
type Dispatcher struct {
	sender Sender
	ledger Ledger
	logger *slog.Logger

	timersMu sync.Mutex
	timers   map[string]*time.Timer

	// now is swapped in tests.
	now func() time.Time
}

func NewDispatcher(sender Sender, ledger Ledger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		ledger: ledger,
		logger: logger,
		timers: make(map[string]*time.Timer),
		now:    time.Now,
	}
}

// NeedsReviewKey is the ledger key for the needs-review notification of a PR.
func NeedsReviewKey(prID string) string { return prID + "-needs-review" }

// ReviewRequestKey is the ledger key for the new-review-request notification.
func ReviewRequestKey(prID string) string { return prID + "-review-request" }

// SendNeedsReview notifies that a PR needs the viewer's (re-)review. Duplicate
// sends for the same PR inside the 24h window are dropped via the ledger.
func (d *Dispatcher) SendNeedsReview(ctx context.Context, settings domain.Settings, pr domain.PullRequest) error {
	if !settings.NotifyNeedsReview {
		return nil
	}
	return d.sendDeduped(ctx, settings, NeedsReviewKey(pr.ID), "Needs review", pr)
}

// SendReviewRequested notifies that the viewer was asked to review a new PR.
func (d *Dispatcher) SendReviewRequested(ctx context.Context, settings domain.Settings, pr domain.PullRequest) error {
	if !settings.NotifyNewReviewRequests {
		return nil
	}
	return d.sendDeduped(ctx, settings, ReviewRequestKey(pr.ID), "Review requested", pr)
}

func (d *Dispatcher) sendDeduped(ctx context.Context, settings domain.Settings, key, title string, pr domain.PullRequest) error {
	now := d.now()
	if settings.QuietHours != nil && settings.QuietHours.Contains(now) {
		return nil
	}
	if last, ok := d.ledger.LedgerTimestamp(key); ok && now.Sub(last) < needsReviewWindow {
		return nil
	}

	if err := d.sender.Send(ctx, title, pr.Title, pr.Repo); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	if err := d.ledger.SetLedgerTimestamp(key, now); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// ScheduleSnoozeReminder arms a reminder for when the snooze on pr runs out.
// Snooze reminders are scoped to the PR id but not deduped; re-snoozing the
// same PR replaces the pending reminder.
func (d *Dispatcher) ScheduleSnoozeReminder(ctx context.Context, pr domain.PullRequest, at time.Time) {
	delay := at.Sub(d.now())
	if delay < 0 {
		delay = 0
	}

	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	if prev, ok := d.timers[pr.ID]; ok {
		prev.Stop()
	}
	d.timers[pr.ID] = time.AfterFunc(delay, func() {
		d.timersMu.Lock()
		delete(d.timers, pr.ID)
		d.timersMu.Unlock()

		if err := d.sender.Send(ctx, "Snoozed PR ready", pr.Title, "Snooze expired"); err != nil {
			d.logger.Error("send snooze reminder failed", "pr", pr.ID, "err", err)
		}
	})
}

// Stop cancels all pending reminders.
func (d *Dispatcher) Stop() {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}

// ExecSender shells out to the platform notifier, the same way the rest of
// the app drives external tools.
type ExecSender struct {
	logger *slog.Logger
}

func NewExecSender(logger *slog.Logger) *ExecSender {
	return &ExecSender{logger: logger}
}

func (s *ExecSender) Send(ctx context.Context, title, subtitle, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q subtitle %q",
			body, title, subtitle)
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	default:
		cmd = exec.CommandContext(ctx, "notify-send", title, strings.TrimSpace(subtitle+"\n"+body))
	}

	s.logger.Debug("notify", "title", title, "subtitle", subtitle)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NopSender drops notifications; used in headless test runs and when the
// platform notifier is unavailable.
type NopSender struct{}

func (NopSender) Send(ctx context.Context, title, subtitle, body string) error { return nil }
