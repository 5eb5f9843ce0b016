package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/prpulse/prpulse/internal/domain"
)

// Model is the bubbletea model for the dashboard. It re-pulls a snapshot
// from the controller on a tick, so the TUI never holds mutable state of its
// own beyond cursor position and the active tab.
type Model struct {
	controller      Controller
	snapshot        Snapshot
	refreshInterval time.Duration
	activeTab       int
	selected        int
}

type tickMsg time.Time

func NewModel(controller Controller, refreshInterval time.Duration) Model {
	return Model{
		controller:      controller,
		snapshot:        controller.GetSnapshot(),
		refreshInterval: refreshInterval,
		activeTab:       1, // review-requested, same default as the orchestrator
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.refreshInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "1", "2", "3":
			idx := int(msg.String()[0] - '1')
			if idx < len(domain.Tabs) {
				m.activeTab = idx
				m.selected = 0
				m.controller.SelectTab(domain.Tabs[idx])
				m.snapshot = m.controller.GetSnapshot()
			}
		case "tab":
			m.activeTab = (m.activeTab + 1) % len(domain.Tabs)
			m.selected = 0
			m.controller.SelectTab(domain.Tabs[m.activeTab])
			m.snapshot = m.controller.GetSnapshot()

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < m.currentCount()-1 {
				m.selected++
			}

		case "r":
			m.controller.RefreshAll()
		case "m":
			m.controller.LoadMore(domain.Tabs[m.activeTab])

		case "t":
			m.performSelected(ActionMarkTodo)
		case "n":
			m.performSelected(ActionMarkNotApplicable)
		case "c":
			m.performSelected(ActionClearOverride)
		case "s":
			m.performSelected(ActionSnoozeTomorrow)

		case "a":
			f := m.snapshot.Filter
			f.ActionableOnly = !f.ActionableOnly
			m.controller.SetFilter(f)
			m.snapshot = m.controller.GetSnapshot()
			m.clampSelection()
		case "h":
			f := m.snapshot.Filter
			f.HideReviewed = !f.HideReviewed
			m.controller.SetFilter(f)
			m.snapshot = m.controller.GetSnapshot()
			m.clampSelection()

		case "e":
			m.controller.ClearConnectionLog()
			m.snapshot = m.controller.GetSnapshot()
		}

	case tickMsg:
		m.snapshot = m.controller.GetSnapshot()
		m.clampSelection()
		return m, tickCmd(m.refreshInterval)
	}

	return m, nil
}

func (m Model) View() string {
	return renderView(m.snapshot, m.activeTab, m.selected)
}

func (m *Model) performSelected(action QuickAction) {
	items := m.currentItems()
	if m.selected < 0 || m.selected >= len(items) {
		return
	}
	m.controller.Perform(action, items[m.selected].PullRequest.ID)
	m.snapshot = m.controller.GetSnapshot()
	m.clampSelection()
}

func (m Model) currentItems() []domain.Presentation {
	if m.activeTab < 0 || m.activeTab >= len(m.snapshot.Tabs) {
		return nil
	}
	return m.snapshot.Tabs[m.activeTab].Items
}

func (m Model) currentCount() int {
	return len(m.currentItems())
}

func (m *Model) clampSelection() {
	if count := m.currentCount(); m.selected >= count {
		m.selected = count - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
