package domain

import (
	"sort"
	"strings"
	"time"
)

// StatusCalculator derives a Status for the given viewer. It is pure and
// total: absent optional fields degrade instead of failing. All login
// comparisons are case-insensitive.
type StatusCalculator struct {
	ViewerLogin string

	// Now is the clock used for snooze evaluation. Zero means time.Now.
	Now func() time.Time
}

// Status classifies the given PR for the calculator's viewer.
func (c StatusCalculator) Status(pr PullRequest) Status {
	badge := c.badge(pr.Detail)
	approvals, changesRequested := tally(pr.Detail.Reviews)
	readiness := readiness(pr, changesRequested)
	actionable := c.actionable(pr.Override, readiness)

	return Status{
		Badge:            badge,
		Approvals:        approvals,
		ChangesRequested: changesRequested,
		Readiness:        readiness,
		IsActionable:     actionable,
	}
}

func (c StatusCalculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// badge compares the viewer's latest review against the latest commit. No
// recorded commit means there is nothing newer to look at, so a past review
// still counts as caught up.
func (c StatusCalculator) badge(detail Detail) Badge {
	var latest *Review
	for i := range detail.Reviews {
		r := &detail.Reviews[i]
		if !strings.EqualFold(r.Reviewer, c.ViewerLogin) {
			continue
		}
		if latest == nil || r.SubmittedAt.After(latest.SubmittedAt) {
			latest = r
		}
	}
	if latest == nil {
		return BadgeNone
	}
	if detail.LatestCommitAt == nil {
		return BadgeReviewed
	}
	if !detail.LatestCommitAt.After(latest.SubmittedAt) {
		return BadgeReviewed
	}
	return BadgeNeedsReReview
}

// tally reduces reviews to the latest per reviewer (lower-cased login) and
// counts approvals and change requests. Commented and dismissed reviews count
// toward neither. Equal timestamps keep the later input-order entry.
func tally(reviews []Review) (approvals, changesRequested int) {
	latestByReviewer := make(map[string]Review, len(reviews))
	for _, r := range reviews {
		key := strings.ToLower(r.Reviewer)
		existing, ok := latestByReviewer[key]
		if !ok || !r.SubmittedAt.Before(existing.SubmittedAt) {
			latestByReviewer[key] = r
		}
	}

	for _, r := range latestByReviewer {
		switch r.State {
		case ReviewApproved:
			approvals++
		case ReviewChangesRequested:
			changesRequested++
		}
	}
	return approvals, changesRequested
}

// readiness evaluates the merge-blocking checks in strict priority order;
// first match wins.
func readiness(pr PullRequest, changesRequested int) Readiness {
	switch {
	case pr.Detail.Mergeable == MergeableUnknown:
		return Readiness{Kind: Checking}
	case pr.IsDraft:
		return Readiness{Kind: Blocked, Reason: "Draft"}
	case pr.Detail.Mergeable != Mergeable:
		return Readiness{Kind: Blocked, Reason: "Conflicts"}
	case changesRequested > 0:
		return Readiness{Kind: Blocked, Reason: "Changes requested"}
	case pr.Detail.ReviewDecision != "" && pr.Detail.ReviewDecision != DecisionApproved:
		return Readiness{Kind: Pending}
	default:
		return Readiness{Kind: Ready}
	}
}

func (c StatusCalculator) actionable(override Override, readiness Readiness) bool {
	if override.State == OverrideNotApplicable || override.IsSnoozed(c.now()) {
		return false
	}
	switch readiness.Kind {
	case Ready:
		return true
	case Pending, Blocked:
		return override.State == OverrideTodo
	default: // Checking
		return false
	}
}

// SortByUpdated orders PRs newest-updated first, stable on equal timestamps.
func SortByUpdated(prs []PullRequest) {
	sort.SliceStable(prs, func(i, j int) bool {
		return prs[i].UpdatedAt.After(prs[j].UpdatedAt)
	})
}
