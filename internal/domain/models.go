// Package domain holds the pull request model and the pure classification
// logic that everything else composes: the status calculator and the digest
// computer. Nothing in this package does I/O.
package domain

import "time"

// Tab identifies one of the three dashboard lists.
type Tab string

const (
	TabMine            Tab = "mine"
	TabReviewRequested Tab = "reviewRequested"
	TabWatched         Tab = "watched"
)

// Tabs lists all tabs in display order.
var Tabs = []Tab{TabMine, TabReviewRequested, TabWatched}

func (t Tab) Title() string {
	switch t {
	case TabMine:
		return "My PRs"
	case TabReviewRequested:
		return "Review Requested"
	case TabWatched:
		return "Watched"
	default:
		return string(t)
	}
}

// MergeableState is the server-computed mergeability of a PR.
type MergeableState string

const (
	Mergeable        MergeableState = "MERGEABLE"
	Conflicting      MergeableState = "CONFLICTING"
	MergeableUnknown MergeableState = "UNKNOWN"
)

// ReviewDecision is the repo-level review outcome, when the server reports one.
type ReviewDecision string

const (
	DecisionApproved         ReviewDecision = "APPROVED"
	DecisionChangesRequested ReviewDecision = "CHANGES_REQUESTED"
	DecisionReviewRequired   ReviewDecision = "REVIEW_REQUIRED"
	DecisionCommented        ReviewDecision = "COMMENTED"
)

// ReviewState is the state of a single submitted review.
type ReviewState string

const (
	ReviewApproved         ReviewState = "APPROVED"
	ReviewChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewCommented        ReviewState = "COMMENTED"
	ReviewDismissed        ReviewState = "DISMISSED"
)

// Review is one submitted review on a PR. Order of reviews as received from
// the source carries no guarantee; consumers sort and dedupe explicitly.
type Review struct {
	Reviewer    string      `json:"reviewer"`
	State       ReviewState `json:"state"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

// Detail carries the review/mergeability data fetched per PR.
type Detail struct {
	Mergeable      MergeableState `json:"mergeable"`
	ReviewDecision ReviewDecision `json:"reviewDecision,omitempty"`
	LatestCommitAt *time.Time     `json:"latestCommitAt,omitempty"`
	Reviews        []Review       `json:"reviews,omitempty"`
}

// OverrideState is the user-picked triage state for a PR.
type OverrideState string

const (
	OverrideNone          OverrideState = "none"
	OverrideTodo          OverrideState = "todo"
	OverrideNotApplicable OverrideState = "notApplicable"
)

// Override is the locally persisted triage state for one PR. The zero value
// is the default "no override" state.
type Override struct {
	State        OverrideState `json:"state,omitempty"`
	SnoozedUntil *time.Time    `json:"snoozedUntil,omitempty"`
}

// IsSnoozed reports whether the PR is snoozed at the given instant. Evaluated
// at read time, never stored.
func (o Override) IsSnoozed(now time.Time) bool {
	return o.SnoozedUntil != nil && o.SnoozedUntil.After(now)
}

// IsZero reports whether the override carries no user decision.
func (o Override) IsZero() bool {
	return (o.State == "" || o.State == OverrideNone) && o.SnoozedUntil == nil
}

// PullRequest is one PR as shown on the dashboard: fetched fields plus the
// locally stored override merged in by the orchestrator.
type PullRequest struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Repo      string    `json:"repo"` // "owner/name"
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsDraft   bool      `json:"isDraft"`
	Detail    Detail    `json:"detail"`
	Override  Override  `json:"-"`
}

// Page is one page of fetched pull requests.
type Page struct {
	Items       []PullRequest
	Cursor      string
	HasNextPage bool
}

// Badge marks review staleness relative to the viewer's own last review.
type Badge string

const (
	BadgeNone          Badge = "none"
	BadgeReviewed      Badge = "reviewed"
	BadgeNeedsReReview Badge = "needsReReview"
)

// ReadinessKind discriminates the Readiness variant.
type ReadinessKind string

const (
	Ready    ReadinessKind = "ready"
	Pending  ReadinessKind = "pending"
	Blocked  ReadinessKind = "blocked"
	Checking ReadinessKind = "checking"
)

// Readiness is the merge-blocking classification. Reason is set only for
// Blocked.
type Readiness struct {
	Kind   ReadinessKind
	Reason string
}

// Status is the derived classification of a PR for the current viewer. It is
// recomputed on every refresh and never persisted.
type Status struct {
	Badge            Badge
	Approvals        int
	ChangesRequested int
	Readiness        Readiness
	IsActionable     bool
}

// ActivityEventType labels one entry in the activity log.
type ActivityEventType string

const (
	EventOpenedMyPR ActivityEventType = "openedMyPR"
	EventReviewedPR ActivityEventType = "reviewedPR"
)

// ActivityEvent is one append-only activity log entry.
type ActivityEvent struct {
	Type ActivityEventType `json:"type"`
	Date time.Time         `json:"date"`
}

// DigestCadence selects the trailing window for digests.
type DigestCadence string

const (
	CadenceOff      DigestCadence = "off"
	CadenceWeekly   DigestCadence = "weekly"
	CadenceBiWeekly DigestCadence = "biWeekly"
)

// Days returns the trailing window in days, 0 for off.
func (c DigestCadence) Days() int {
	switch c {
	case CadenceWeekly:
		return 7
	case CadenceBiWeekly:
		return 14
	default:
		return 0
	}
}

// Digest is the computed activity summary for one cadence window.
type Digest struct {
	Opened    int
	Reviewed  int
	Timeframe string
}

// RepoSubscription is one watched repository.
type RepoSubscription struct {
	NameWithOwner        string `json:"nameWithOwner"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
}

// QuietHours suppresses notifications between StartHour and EndHour (local
// time, wrap-around allowed, e.g. 22 → 7).
type QuietHours struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Contains reports whether t falls inside the quiet window.
func (q QuietHours) Contains(t time.Time) bool {
	h := t.Hour()
	if q.StartHour == q.EndHour {
		return false
	}
	if q.StartHour < q.EndHour {
		return h >= q.StartHour && h < q.EndHour
	}
	return h >= q.StartHour || h < q.EndHour
}

// Settings is the persisted app configuration. Token is held in memory only;
// the store blanks it before anything touches disk.
type Settings struct {
	Token           string        `json:"-"`
	RefreshInterval time.Duration `json:"-"` // persisted as whole seconds by the store

	RefreshOnLaunch         bool               `json:"refreshOnLaunch"`
	NotifyNeedsReview       bool               `json:"notifyNeedsReview"`
	NotifyNewReviewRequests bool               `json:"notifyNewReviewRequests"`
	QuietHours              *QuietHours        `json:"quietHours,omitempty"`
	SnoozeDefaultHour       int                `json:"snoozeDefaultHour"`
	DigestCadence           DigestCadence      `json:"digestCadence"`
	WatchedRepositories     []RepoSubscription `json:"watchedRepositories"`
}

// DefaultSettings returns the settings used before the user saves any.
func DefaultSettings() Settings {
	return Settings{
		RefreshInterval:         5 * time.Minute,
		RefreshOnLaunch:         true,
		NotifyNeedsReview:       true,
		NotifyNewReviewRequests: true,
		SnoozeDefaultHour:       9,
		DigestCadence:           CadenceWeekly,
	}
}

// FilterState narrows the displayed lists. Zero value shows everything.
type FilterState struct {
	SearchText        string
	ActionableOnly    bool
	HideReviewed      bool
	HideSnoozed       bool
	HideNotApplicable bool
}

// Presentation pairs a PR with its computed status for display.
type Presentation struct {
	PullRequest PullRequest
	Status      Status
}

// BadgeText is the short label shown next to a PR for its review badge.
func (p Presentation) BadgeText() string {
	switch p.Status.Badge {
	case BadgeReviewed:
		return "Reviewed"
	case BadgeNeedsReReview:
		return "Needs re-review"
	default:
		return ""
	}
}
