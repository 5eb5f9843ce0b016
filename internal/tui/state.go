package tui

import (
	"time"

	"github.com/prpulse/prpulse/internal/domain"
)

// Snapshot is one immutable view of the dashboard, rebuilt by the
// orchestrator on demand.
type Snapshot struct {
	Timestamp       time.Time
	Viewer          string
	Tabs            []TabState
	BadgeCount      int
	Digest          domain.Digest
	Connected       bool
	StatusText      string
	ConnectionLog   []string
	StorageError    string
	LastRefreshAt   time.Time
	RefreshInterval time.Duration
	Filter          domain.FilterState
}

// TabState is the displayed list for one tab.
type TabState struct {
	Tab         domain.Tab
	Items       []domain.Presentation
	HasNextPage bool
	Loading     bool
}

// QuickAction is a user triage verb applied to one PR.
type QuickAction int

const (
	ActionMarkTodo QuickAction = iota
	ActionMarkNotApplicable
	ActionClearOverride
	ActionSnoozeTomorrow
)

// Controller is what the TUI needs from the orchestrator. All methods are
// non-blocking; mutating ones kick off work and the next snapshot reflects it.
type Controller interface {
	GetSnapshot() Snapshot
	RefreshAll()
	SelectTab(tab domain.Tab)
	LoadMore(tab domain.Tab)
	Perform(action QuickAction, prID string)
	SetFilter(f domain.FilterState)
	ClearConnectionLog()
}
