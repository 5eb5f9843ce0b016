package github

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prpulse/prpulse/internal/domain"
)

// MockClient serves a deterministic in-memory dataset so the dashboard can be
// exercised without a token or network. Cursors are integer offsets into the
// per-tab slice.
type MockClient struct {
	viewer  string
	dataset map[domain.Tab][]domain.PullRequest
}

// NewMockClient builds a mock client whose viewer is the given login.
func NewMockClient(viewer string) *MockClient {
	if viewer == "" {
		viewer = "octocat"
	}
	return &MockClient{
		viewer:  viewer,
		dataset: makeDataset(viewer, time.Now()),
	}
}

func (c *MockClient) FetchViewer(ctx context.Context) (string, error) {
	return c.viewer, nil
}

func (c *MockClient) FetchPullRequests(ctx context.Context, tab domain.Tab, cursor string) (domain.Page, error) {
	all := c.dataset[tab]

	start := 0
	if cursor != "" {
		idx, err := strconv.Atoi(cursor)
		if err != nil || idx < 0 {
			return domain.Page{}, fmt.Errorf("bad cursor %q", cursor)
		}
		start = idx
	}
	if start > len(all) {
		start = len(all)
	}

	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	page := domain.Page{
		Items:       append([]domain.PullRequest(nil), all[start:end]...),
		HasNextPage: end < len(all),
	}
	if page.HasNextPage {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

func makeDataset(viewer string, now time.Time) map[domain.Tab][]domain.PullRequest {
	var mine, reviewRequested, watched []domain.PullRequest

	reviewers := []string{"alice", "bob", viewer, "eve"}
	for i := 1; i <= 35; i++ {
		isDraft := i%5 == 0
		repo := fmt.Sprintf("acme/service-%d", i%4)

		mergeable := domain.Mergeable
		if isDraft {
			mergeable = domain.MergeableUnknown
		} else if i%2 != 0 {
			mergeable = domain.Conflicting
		}

		decision := domain.DecisionReviewRequired
		if i%3 == 0 {
			decision = domain.DecisionApproved
		}

		latestCommit := now.Add(-time.Duration(i) * 5 * time.Hour)
		base := now.Add(-time.Duration(i) * 3 * time.Hour)
		var reviews []domain.Review
		for offset, reviewer := range reviewers {
			state := domain.ReviewCommented
			switch (offset + i) % 3 {
			case 0:
				state = domain.ReviewApproved
			case 1:
				state = domain.ReviewChangesRequested
			}
			reviews = append(reviews, domain.Review{
				Reviewer:    reviewer,
				State:       state,
				SubmittedAt: base.Add(time.Duration(offset) * time.Hour),
			})
		}

		author := fmt.Sprintf("collaborator%d", i)
		if i%2 == 0 {
			author = viewer
		}

		pr := domain.PullRequest{
			ID:        fmt.Sprintf("mock-pr-%03d", i),
			Number:    1000 + i,
			Title:     fmt.Sprintf("Improve reliability of build pipeline %d", i),
			URL:       fmt.Sprintf("https://github.com/%s/pull/%d", repo, 1000+i),
			Repo:      repo,
			Author:    author,
			CreatedAt: now.Add(-time.Duration(i) * 13 * time.Hour),
			UpdatedAt: now.Add(-time.Duration(i) * 6 * time.Hour),
			IsDraft:   isDraft,
			Detail: domain.Detail{
				Mergeable:      mergeable,
				ReviewDecision: decision,
				LatestCommitAt: &latestCommit,
				Reviews:        reviews,
			},
		}

		mine = append(mine, pr)
		if i%2 == 0 {
			reviewRequested = append(reviewRequested, pr)
		}
		if i%3 == 0 {
			watched = append(watched, pr)
		}
	}

	return map[domain.Tab][]domain.PullRequest{
		domain.TabMine:            mine,
		domain.TabReviewRequested: reviewRequested,
		domain.TabWatched:         watched,
	}
}
