// Package dashboard coordinates fetching, the status calculator, the store
// and notifications into the per-tab lists the TUI renders. It owns the
// protocol rules: one in-flight fetch per tab, overrides merged before status
// computation, full recompute on every settings/filter/override change, and
// silent treatment of cancelled fetches.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prpulse/prpulse/internal/domain"
	"github.com/prpulse/prpulse/internal/github"
	"github.com/prpulse/prpulse/internal/notify"
	"github.com/prpulse/prpulse/internal/store"
	"github.com/prpulse/prpulse/internal/tui"
)

const maxConnectionLog = 20

type listState struct {
	raw         []domain.PullRequest
	displayed   []domain.Presentation
	cursor      string
	hasNextPage bool
	loading     bool
}

// Dashboard is the orchestrator. All exported methods are safe for
// concurrent use.
type Dashboard struct {
	client   github.Client
	store    *store.Store
	notifier *notify.Dispatcher
	logger   *slog.Logger

	mu            sync.Mutex
	ctx           context.Context
	viewerLogin   string
	selectedTab   domain.Tab
	filter        domain.FilterState
	lists         map[domain.Tab]*listState
	seen          map[domain.Tab]map[string]bool
	badgeCount    int
	digest        domain.Digest
	connected     bool
	statusText    string
	connectionLog []string
	storageError  string
	lastRefreshAt time.Time

	scheduler scheduler
	wg        sync.WaitGroup
}

// New builds a dashboard. Run must be called before anything else.
func New(client github.Client, st *store.Store, notifier *notify.Dispatcher, logger *slog.Logger) *Dashboard {
	d := &Dashboard{
		client:      client,
		store:       st,
		notifier:    notifier,
		logger:      logger,
		selectedTab: domain.TabReviewRequested,
		lists:       make(map[domain.Tab]*listState),
		seen:        make(map[domain.Tab]map[string]bool),
		connected:   true,
		statusText:  "Connected",
		digest:      domain.Digest{Timeframe: "Off"},
	}
	for _, tab := range domain.Tabs {
		d.lists[tab] = &listState{}
		d.seen[tab] = make(map[string]bool)
	}
	return d
}

// Run bootstraps the dashboard and blocks until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	d.bootstrap(ctx)

	<-ctx.Done()
	d.scheduler.stop()
	d.notifier.Stop()
	d.wg.Wait()
	d.logger.Info("dashboard stopped")
	return nil
}

func (d *Dashboard) bootstrap(ctx context.Context) {
	login, err := d.client.FetchViewer(ctx)
	switch {
	case err == nil:
		d.mu.Lock()
		d.viewerLogin = login
		d.mu.Unlock()
		d.markConnected()
	case errors.Is(err, context.Canceled):
		// Benign, keep the fallback identity without surfacing anything.
		d.mu.Lock()
		d.viewerLogin = "me"
		d.mu.Unlock()
	default:
		d.mu.Lock()
		d.viewerLogin = "me"
		d.mu.Unlock()
		d.markConnectionError(fmt.Sprintf("viewer lookup failed: %v", err))
	}

	settings := d.store.Settings()
	d.logger.Info("dashboard started",
		"viewer", d.Viewer(),
		"refresh_interval", settings.RefreshInterval,
		"digest_cadence", settings.DigestCadence)

	// Keep the activity log bounded to twice the longest digest window;
	// digests within range are unaffected.
	if err := d.store.PruneActivity(time.Now().AddDate(0, 0, -2*domain.CadenceBiWeekly.Days())); err != nil {
		d.markStorageError(err)
	}

	if settings.RefreshOnLaunch {
		d.RefreshAll()
	}
	d.updateDigest()
	d.restartScheduler(settings.RefreshInterval)
}

func (d *Dashboard) restartScheduler(interval time.Duration) {
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if ctx == nil {
		return
	}
	d.scheduler.start(ctx, interval, func() {
		d.RefreshTab(d.SelectedTab())
	})
}

// Viewer returns the resolved viewer login ("me" until the first successful
// identity fetch).
func (d *Dashboard) Viewer() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewerLogin
}

// SelectedTab returns the tab the periodic refresh targets.
func (d *Dashboard) SelectedTab() domain.Tab {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectedTab
}

// SelectTab records the active tab and fetches it if it was never loaded.
func (d *Dashboard) SelectTab(tab domain.Tab) {
	d.mu.Lock()
	d.selectedTab = tab
	empty := len(d.lists[tab].raw) == 0 && !d.lists[tab].loading
	d.mu.Unlock()
	if empty {
		d.RefreshTab(tab)
	}
}

// RefreshAll reset-fetches every tab and recomputes the digest.
func (d *Dashboard) RefreshAll() {
	for _, tab := range domain.Tabs {
		d.RefreshTab(tab)
	}
	d.updateDigest()
}

// RefreshTab reset-fetches one tab in the background. A fetch already in
// flight for the tab makes this a no-op.
func (d *Dashboard) RefreshTab(tab domain.Tab) {
	d.loadPageAsync(tab, true)
}

// LoadMore fetches the next page of one tab using its stored cursor.
func (d *Dashboard) LoadMore(tab domain.Tab) {
	d.loadPageAsync(tab, false)
}

func (d *Dashboard) loadPageAsync(tab domain.Tab, reset bool) {
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if ctx == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loadPage(ctx, tab, reset)
	}()
}

// loadPage is the single fetch path. The loading flag enforces at most one
// in-flight fetch per tab, which also keeps reset/load-more causally ordered:
// a load-more can never run against a cursor from before an unfinished reset.
func (d *Dashboard) loadPage(ctx context.Context, tab domain.Tab, reset bool) {
	d.mu.Lock()
	state := d.lists[tab]
	if state.loading {
		d.mu.Unlock()
		return
	}
	if !reset && !state.hasNextPage {
		d.mu.Unlock()
		return
	}
	state.loading = true
	cursor := ""
	if !reset {
		cursor = state.cursor
	}
	d.mu.Unlock()

	page, err := d.client.FetchPullRequests(ctx, tab, cursor)
	if err != nil {
		d.mu.Lock()
		state.loading = false
		d.mu.Unlock()
		if errors.Is(err, context.Canceled) {
			return
		}
		d.logger.Error("fetch failed", "tab", tab, "err", err)
		d.markConnectionError(err.Error())
		return
	}

	// Merge the persisted override into each fetched item before any status
	// computation sees it.
	for i := range page.Items {
		page.Items[i].Override = d.store.Override(page.Items[i].ID)
	}

	d.mu.Lock()
	if reset {
		state.raw = page.Items
	} else {
		state.raw = append(state.raw, page.Items...)
	}
	state.cursor = page.Cursor
	state.hasNextPage = page.HasNextPage
	state.loading = false
	d.lastRefreshAt = time.Now()
	newlySeen := d.markSeenLocked(tab, page.Items)
	d.recomputeLocked()
	d.mu.Unlock()

	d.markConnected()
	d.logger.Debug("loaded page", "tab", tab, "items", len(page.Items), "has_next", page.HasNextPage)

	d.afterLoad(ctx, tab, newlySeen)
}

// markSeenLocked returns the subset of items never seen on this tab before.
func (d *Dashboard) markSeenLocked(tab domain.Tab, items []domain.PullRequest) []domain.PullRequest {
	var fresh []domain.PullRequest
	for _, pr := range items {
		if !d.seen[tab][pr.ID] {
			d.seen[tab][pr.ID] = true
			fresh = append(fresh, pr)
		}
	}
	return fresh
}

// afterLoad raises notifications and records activity for freshly fetched
// items. Activity appends are guarded by ledger keys so restarts do not
// duplicate events.
func (d *Dashboard) afterLoad(ctx context.Context, tab domain.Tab, newlySeen []domain.PullRequest) {
	settings := d.store.Settings()
	viewer := d.Viewer()
	calc := domain.StatusCalculator{ViewerLogin: viewer}

	for _, pr := range newlySeen {
		switch tab {
		case domain.TabReviewRequested:
			if err := d.notifier.SendReviewRequested(ctx, settings, pr); err != nil {
				d.logger.Error("review-request notification failed", "pr", pr.ID, "err", err)
			}
		case domain.TabMine:
			if strings.EqualFold(pr.Author, viewer) {
				d.recordActivityOnce(pr.ID+"-opened-event", domain.ActivityEvent{
					Type: domain.EventOpenedMyPR,
					Date: pr.CreatedAt,
				})
			}
		}
	}

	if tab == domain.TabReviewRequested {
		for _, pr := range newlySeen {
			status := calc.Status(pr)
			if status.IsActionable && status.Badge != domain.BadgeReviewed {
				if err := d.notifier.SendNeedsReview(ctx, settings, pr); err != nil {
					d.logger.Error("needs-review notification failed", "pr", pr.ID, "err", err)
				}
			}
			if status.Badge != domain.BadgeNone {
				d.recordActivityOnce(pr.ID+"-reviewed-event", domain.ActivityEvent{
					Type: domain.EventReviewedPR,
					Date: time.Now(),
				})
			}
		}
	}
}

func (d *Dashboard) recordActivityOnce(ledgerKey string, e domain.ActivityEvent) {
	if _, ok := d.store.LedgerTimestamp(ledgerKey); ok {
		return
	}
	if err := d.store.AppendActivity(e); err != nil {
		d.markStorageError(err)
		return
	}
	if err := d.store.SetLedgerTimestamp(ledgerKey, time.Now()); err != nil {
		d.markStorageError(err)
	}
}

// SetFilter replaces the filter and recomputes every displayed list.
func (d *Dashboard) SetFilter(f domain.FilterState) {
	d.mu.Lock()
	d.filter = f
	d.recomputeLocked()
	d.mu.Unlock()
}

// UpdateSettings persists new settings, restarts the refresh loop and
// recomputes lists and digest.
func (d *Dashboard) UpdateSettings(settings domain.Settings) error {
	if err := d.store.SetSettings(settings); err != nil {
		d.markStorageError(err)
		return err
	}
	d.restartScheduler(settings.RefreshInterval)
	d.mu.Lock()
	d.recomputeLocked()
	d.mu.Unlock()
	d.updateDigest()
	return nil
}

// recomputeLocked rebuilds every displayed list from raw items, the current
// filter and freshly computed statuses. Displayed lists are never patched
// incrementally.
func (d *Dashboard) recomputeLocked() {
	calc := domain.StatusCalculator{ViewerLogin: d.viewerLogin}
	now := time.Now()
	needle := strings.ToLower(strings.TrimSpace(d.filter.SearchText))

	badge := 0
	for _, tab := range domain.Tabs {
		state := d.lists[tab]
		displayed := make([]domain.Presentation, 0, len(state.raw))
		for _, pr := range state.raw {
			if needle != "" &&
				!strings.Contains(strings.ToLower(pr.Title), needle) &&
				!strings.Contains(strings.ToLower(pr.Repo), needle) {
				continue
			}
			if d.filter.HideNotApplicable && pr.Override.State == domain.OverrideNotApplicable {
				continue
			}
			if d.filter.HideSnoozed && pr.Override.IsSnoozed(now) {
				continue
			}

			status := calc.Status(pr)
			if d.filter.ActionableOnly && !status.IsActionable {
				continue
			}
			if d.filter.HideReviewed && status.Badge == domain.BadgeReviewed {
				continue
			}

			if status.IsActionable {
				badge++
			}
			displayed = append(displayed, domain.Presentation{PullRequest: pr, Status: status})
		}
		state.displayed = displayed
	}
	d.badgeCount = badge
}

func (d *Dashboard) updateDigest() {
	settings := d.store.Settings()
	cadence := settings.DigestCadence
	now := time.Now()

	var events []domain.ActivityEvent
	if days := cadence.Days(); days > 0 {
		events = d.store.RecentActivity(now.AddDate(0, 0, -days))
	}
	digest := domain.ComputeDigest(events, cadence, now)

	d.mu.Lock()
	d.digest = digest
	d.mu.Unlock()
}

func (d *Dashboard) markConnected() {
	d.mu.Lock()
	d.connected = true
	d.statusText = "Connected"
	d.connectionLog = nil
	d.mu.Unlock()
}

// markConnectionError appends to the deduplicated rolling error log and flips
// the connection state. The next successful operation clears it.
func (d *Dashboard) markConnectionError(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	entry := fmt.Sprintf("%s: %s", time.Now().Format("15:04:05"), message)

	d.mu.Lock()
	if n := len(d.connectionLog); n == 0 || !strings.HasSuffix(d.connectionLog[n-1], message) {
		d.connectionLog = append(d.connectionLog, entry)
		if len(d.connectionLog) > maxConnectionLog {
			d.connectionLog = d.connectionLog[len(d.connectionLog)-maxConnectionLog:]
		}
	}
	d.connected = false
	d.statusText = "Connection issue"
	d.mu.Unlock()
}

// markStorageError surfaces persistence trouble separately from connection
// state; the in-memory data keeps working and no automatic retry happens.
func (d *Dashboard) markStorageError(err error) {
	d.logger.Error("storage failure", "err", err)
	d.mu.Lock()
	d.storageError = err.Error()
	d.mu.Unlock()
}

// ClearConnectionLog drops the rolling error log and resets connection state.
func (d *Dashboard) ClearConnectionLog() {
	d.markConnected()
}

// GetSnapshot builds the immutable view the TUI renders.
func (d *Dashboard) GetSnapshot() tui.Snapshot {
	settings := d.store.Settings()

	d.mu.Lock()
	defer d.mu.Unlock()

	tabs := make([]tui.TabState, 0, len(domain.Tabs))
	for _, tab := range domain.Tabs {
		state := d.lists[tab]
		tabs = append(tabs, tui.TabState{
			Tab:         tab,
			Items:       append([]domain.Presentation(nil), state.displayed...),
			HasNextPage: state.hasNextPage,
			Loading:     state.loading,
		})
	}

	return tui.Snapshot{
		Timestamp:       time.Now(),
		Viewer:          d.viewerLogin,
		Tabs:            tabs,
		BadgeCount:      d.badgeCount,
		Digest:          d.digest,
		Connected:       d.connected,
		StatusText:      d.statusText,
		ConnectionLog:   append([]string(nil), d.connectionLog...),
		StorageError:    d.storageError,
		LastRefreshAt:   d.lastRefreshAt,
		RefreshInterval: settings.RefreshInterval,
		Filter:          d.filter,
	}
}
