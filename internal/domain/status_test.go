package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }

func basePR(detail Detail) PullRequest {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return PullRequest{
		ID:        "pr-1",
		Number:    1,
		Title:     "Test",
		URL:       "https://example.com/pull/1",
		Repo:      "owner/repo",
		Author:    "author",
		CreatedAt: now,
		UpdatedAt: now,
		Detail:    detail,
	}
}

func TestBadge(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	calc := StatusCalculator{ViewerLogin: "me"}

	tests := []struct {
		name   string
		detail Detail
		want   Badge
	}{
		{
			name: "no own review",
			detail: Detail{
				Mergeable: Mergeable,
				Reviews:   []Review{{Reviewer: "alice", State: ReviewApproved, SubmittedAt: now}},
			},
			want: BadgeNone,
		},
		{
			name: "reviewed when commit older than review",
			detail: Detail{
				Mergeable:      Mergeable,
				LatestCommitAt: timePtr(now.Add(-time.Minute)),
				Reviews:        []Review{{Reviewer: "me", State: ReviewApproved, SubmittedAt: now}},
			},
			want: BadgeReviewed,
		},
		{
			name: "reviewed when commit equals review time",
			detail: Detail{
				Mergeable:      Mergeable,
				LatestCommitAt: timePtr(now),
				Reviews:        []Review{{Reviewer: "me", State: ReviewApproved, SubmittedAt: now}},
			},
			want: BadgeReviewed,
		},
		{
			name: "needs re-review when commit newer",
			detail: Detail{
				Mergeable:      Mergeable,
				LatestCommitAt: timePtr(now.Add(time.Minute)),
				Reviews:        []Review{{Reviewer: "me", State: ReviewApproved, SubmittedAt: now}},
			},
			want: BadgeNeedsReReview,
		},
		{
			name: "no recorded commit counts as caught up",
			detail: Detail{
				Mergeable: Mergeable,
				Reviews:   []Review{{Reviewer: "me", State: ReviewCommented, SubmittedAt: now.Add(-time.Hour)}},
			},
			want: BadgeReviewed,
		},
		{
			name: "viewer login matched case-insensitively",
			detail: Detail{
				Mergeable:      Mergeable,
				LatestCommitAt: timePtr(now.Add(time.Minute)),
				Reviews:        []Review{{Reviewer: "Me", State: ReviewApproved, SubmittedAt: now}},
			},
			want: BadgeNeedsReReview,
		},
		{
			name: "latest own review wins",
			detail: Detail{
				Mergeable:      Mergeable,
				LatestCommitAt: timePtr(now),
				Reviews: []Review{
					{Reviewer: "me", State: ReviewApproved, SubmittedAt: now.Add(-2 * time.Hour)},
					{Reviewer: "me", State: ReviewApproved, SubmittedAt: now.Add(time.Hour)},
				},
			},
			want: BadgeReviewed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := calc.Status(basePR(tt.detail))
			assert.Equal(t, tt.want, status.Badge)
		})
	}
}

func TestTallyDedupesByReviewer(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	calc := StatusCalculator{ViewerLogin: "me"}

	// Same reviewer updates their review: the later one replaces the earlier.
	pr := basePR(Detail{
		Mergeable:      Mergeable,
		ReviewDecision: DecisionApproved,
		Reviews: []Review{
			{Reviewer: "alice", State: ReviewChangesRequested, SubmittedAt: now.Add(-time.Hour)},
			{Reviewer: "alice", State: ReviewApproved, SubmittedAt: now},
		},
	})

	status := calc.Status(pr)
	assert.Equal(t, 1, status.Approvals)
	assert.Equal(t, 0, status.ChangesRequested)
	assert.Equal(t, Ready, status.Readiness.Kind)
	assert.True(t, status.IsActionable)
}

func TestTallyCaseInsensitiveAndDistinctBound(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	calc := StatusCalculator{ViewerLogin: "me"}

	pr := basePR(Detail{
		Mergeable: Mergeable,
		Reviews: []Review{
			{Reviewer: "Alice", State: ReviewApproved, SubmittedAt: now.Add(-time.Hour)},
			{Reviewer: "alice", State: ReviewChangesRequested, SubmittedAt: now},
			{Reviewer: "bob", State: ReviewCommented, SubmittedAt: now},
			{Reviewer: "carol", State: ReviewDismissed, SubmittedAt: now},
			{Reviewer: "dave", State: ReviewApproved, SubmittedAt: now},
		},
	})

	status := calc.Status(pr)
	// approvals + changesRequested never exceeds distinct reviewer count.
	assert.LessOrEqual(t, status.Approvals+status.ChangesRequested, 4)
	assert.Equal(t, 1, status.Approvals)        // dave
	assert.Equal(t, 1, status.ChangesRequested) // alice's latest
}

func TestTallyEqualTimestampsKeepLaterEntry(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	approvals, changesRequested := tally([]Review{
		{Reviewer: "alice", State: ReviewChangesRequested, SubmittedAt: now},
		{Reviewer: "alice", State: ReviewApproved, SubmittedAt: now},
	})
	assert.Equal(t, 1, approvals)
	assert.Equal(t, 0, changesRequested)
}

func TestReadinessPriority(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	calc := StatusCalculator{ViewerLogin: "me"}

	tests := []struct {
		name       string
		pr         PullRequest
		wantKind   ReadinessKind
		wantReason string
	}{
		{
			name: "unknown mergeable wins over draft",
			pr: func() PullRequest {
				pr := basePR(Detail{Mergeable: MergeableUnknown})
				pr.IsDraft = true
				return pr
			}(),
			wantKind: Checking,
		},
		{
			name: "draft blocks regardless of reviews",
			pr: func() PullRequest {
				pr := basePR(Detail{
					Mergeable:      Mergeable,
					ReviewDecision: DecisionApproved,
					Reviews:        []Review{{Reviewer: "alice", State: ReviewApproved, SubmittedAt: now}},
				})
				pr.IsDraft = true
				return pr
			}(),
			wantKind:   Blocked,
			wantReason: "Draft",
		},
		{
			name:       "conflicting",
			pr:         basePR(Detail{Mergeable: Conflicting}),
			wantKind:   Blocked,
			wantReason: "Conflicts",
		},
		{
			name: "changes requested",
			pr: basePR(Detail{
				Mergeable:      Mergeable,
				ReviewDecision: DecisionApproved,
				Reviews:        []Review{{Reviewer: "alice", State: ReviewChangesRequested, SubmittedAt: now}},
			}),
			wantKind:   Blocked,
			wantReason: "Changes requested",
		},
		{
			name: "non-approved decision pends",
			pr: basePR(Detail{
				Mergeable:      Mergeable,
				ReviewDecision: DecisionReviewRequired,
			}),
			wantKind: Pending,
		},
		{
			name:     "no decision means ready",
			pr:       basePR(Detail{Mergeable: Mergeable}),
			wantKind: Ready,
		},
		{
			name: "approved decision is ready",
			pr: basePR(Detail{
				Mergeable:      Mergeable,
				ReviewDecision: DecisionApproved,
			}),
			wantKind: Ready,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := calc.Status(tt.pr)
			require.Equal(t, tt.wantKind, status.Readiness.Kind)
			assert.Equal(t, tt.wantReason, status.Readiness.Reason)
		})
	}
}

func TestActionability(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	calc := StatusCalculator{ViewerLogin: "me", Now: func() time.Time { return now }}

	ready := Detail{Mergeable: Mergeable}
	pending := Detail{Mergeable: Mergeable, ReviewDecision: DecisionReviewRequired}

	tests := []struct {
		name     string
		detail   Detail
		override Override
		want     bool
	}{
		{name: "ready with no override", detail: ready, want: true},
		{name: "pending without todo", detail: pending, want: false},
		{name: "pending with todo", detail: pending, override: Override{State: OverrideTodo}, want: true},
		{name: "checking never actionable", detail: Detail{Mergeable: MergeableUnknown},
			override: Override{State: OverrideTodo}, want: false},
		{name: "not applicable beats ready", detail: ready,
			override: Override{State: OverrideNotApplicable}, want: false},
		{name: "snoozed beats ready", detail: ready,
			override: Override{State: OverrideTodo, SnoozedUntil: timePtr(now.Add(time.Hour))}, want: false},
		{name: "expired snooze is ignored", detail: ready,
			override: Override{State: OverrideTodo, SnoozedUntil: timePtr(now.Add(-time.Hour))}, want: true},
		{name: "blocked with todo", detail: Detail{Mergeable: Conflicting},
			override: Override{State: OverrideTodo}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := basePR(tt.detail)
			pr.Override = tt.override
			assert.Equal(t, tt.want, calc.Status(pr).IsActionable)
		})
	}
}

func TestOverrideIsSnoozed(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	assert.False(t, Override{}.IsSnoozed(now))
	assert.True(t, Override{SnoozedUntil: timePtr(now.Add(time.Hour))}.IsSnoozed(now))
	assert.False(t, Override{SnoozedUntil: timePtr(now)}.IsSnoozed(now))
	assert.False(t, Override{SnoozedUntil: timePtr(now.Add(-time.Second))}.IsSnoozed(now))
}

func TestSortByUpdated(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	prs := []PullRequest{
		{ID: "a", UpdatedAt: now.Add(-time.Hour)},
		{ID: "b", UpdatedAt: now},
		{ID: "c", UpdatedAt: now.Add(-time.Minute)},
	}
	SortByUpdated(prs)
	assert.Equal(t, "b", prs[0].ID)
	assert.Equal(t, "c", prs[1].ID)
	assert.Equal(t, "a", prs[2].ID)
}
