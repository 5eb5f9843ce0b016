// Package github implements the fetch contract: viewer identity plus
// cursor-paginated pull request pages per dashboard tab. APIClient talks to
// the GitHub GraphQL API; MockClient serves a deterministic offline dataset.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prpulse/prpulse/internal/domain"
)

// Client is the fetch contract consumed by the dashboard. A nil cursor
// (empty string) means first page.
type Client interface {
	FetchViewer(ctx context.Context) (string, error)
	FetchPullRequests(ctx context.Context, tab domain.Tab, cursor string) (domain.Page, error)
}

var (
	ErrMissingToken    = errors.New("github token missing, save one with --auth first")
	ErrInvalidResponse = errors.New("github api returned an invalid response")
)

const (
	graphQLEndpoint = "https://api.github.com/graphql"
	pageSize        = 20
	watchedPageCap  = 20
)

// APIClient fetches pull requests from the GitHub GraphQL API.
type APIClient struct {
	http         *http.Client
	logger       *slog.Logger
	token        func() (string, bool)
	watchedRepos func() []domain.RepoSubscription
}

// NewAPIClient builds a client. token resolves the credential on every call
// (it lives in the secret store, not here); watchedRepos supplies the current
// watched-repository subscriptions for the watched tab.
func NewAPIClient(logger *slog.Logger, token func() (string, bool), watchedRepos func() []domain.RepoSubscription) *APIClient {
	return &APIClient{
		http:         &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		token:        token,
		watchedRepos: watchedRepos,
	}
}

func (c *APIClient) FetchViewer(ctx context.Context) (string, error) {
	var data viewerData
	if err := c.graphql(ctx, viewerQuery, nil, &data); err != nil {
		return "", fmt.Errorf("fetch viewer: %w", err)
	}
	return data.Viewer.Login, nil
}

func (c *APIClient) FetchPullRequests(ctx context.Context, tab domain.Tab, cursor string) (domain.Page, error) {
	var page domain.Page
	var err error

	switch tab {
	case domain.TabWatched:
		page, err = c.fetchWatchedPage(ctx, cursor)
	default:
		page, err = c.fetchSearchPage(ctx, searchQueryFor(tab), cursor)
	}
	if err != nil {
		return domain.Page{}, err
	}
	if len(page.Items) == 0 {
		return page, nil
	}

	ids := make([]string, len(page.Items))
	for i, pr := range page.Items {
		ids[i] = pr.ID
	}
	details, err := c.fetchDetails(ctx, ids)
	if err != nil {
		return domain.Page{}, err
	}
	for i := range page.Items {
		if d, ok := details[page.Items[i].ID]; ok {
			page.Items[i].Detail = d
		}
	}
	return page, nil
}

func searchQueryFor(tab domain.Tab) string {
	switch tab {
	case domain.TabMine:
		return "is:pr is:open author:@me sort:updated-desc"
	case domain.TabReviewRequested:
		return "is:pr is:open review-requested:@me sort:updated-desc"
	default:
		return "is:pr is:open sort:updated-desc"
	}
}

func (c *APIClient) fetchSearchPage(ctx context.Context, query, cursor string) (domain.Page, error) {
	vars := map[string]any{"query": query, "first": pageSize}
	if cursor != "" {
		vars["after"] = cursor
	}

	var data searchData
	if err := c.graphql(ctx, searchPullRequestsQuery, vars, &data); err != nil {
		return domain.Page{}, fmt.Errorf("search pull requests: %w", err)
	}

	items := make([]domain.PullRequest, 0, len(data.Search.Nodes))
	for _, node := range data.Search.Nodes {
		pr, ok := node.toPullRequest()
		if !ok {
			// Malformed items are dropped, not fatal for the page.
			c.logger.Debug("dropping malformed search node", "id", node.ID)
			continue
		}
		items = append(items, pr)
	}

	return domain.Page{
		Items:       items,
		Cursor:      data.Search.PageInfo.EndCursor,
		HasNextPage: data.Search.PageInfo.HasNextPage,
	}, nil
}

// fetchWatchedPage merges the first page of each watched repo, dedupes by id
// keeping the newest update, and caps the result. Watched lists are not
// paginated beyond that.
func (c *APIClient) fetchWatchedPage(ctx context.Context, cursor string) (domain.Page, error) {
	if cursor != "" {
		return domain.Page{}, nil
	}

	seen := make(map[string]bool)
	var merged []domain.PullRequest
	for _, sub := range c.watchedRepos() {
		repo := strings.TrimSpace(sub.NameWithOwner)
		if repo == "" || seen[repo] {
			continue
		}
		seen[repo] = true

		query := fmt.Sprintf("repo:%s is:pr is:open sort:updated-desc", repo)
		page, err := c.fetchSearchPage(ctx, query, "")
		if err != nil {
			return domain.Page{}, fmt.Errorf("watched repo %s: %w", repo, err)
		}
		merged = append(merged, page.Items...)
	}

	byID := make(map[string]domain.PullRequest, len(merged))
	for _, pr := range merged {
		if existing, ok := byID[pr.ID]; !ok || pr.UpdatedAt.After(existing.UpdatedAt) {
			byID[pr.ID] = pr
		}
	}

	items := make([]domain.PullRequest, 0, len(byID))
	for _, pr := range byID {
		items = append(items, pr)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	if len(items) > watchedPageCap {
		items = items[:watchedPageCap]
	}

	return domain.Page{Items: items}, nil
}

func (c *APIClient) fetchDetails(ctx context.Context, ids []string) (map[string]domain.Detail, error) {
	var data detailData
	vars := map[string]any{"ids": ids}
	if err := c.graphql(ctx, pullRequestDetailsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}

	details := make(map[string]domain.Detail, len(data.Nodes))
	for _, node := range data.Nodes {
		if node.ID == "" {
			continue
		}
		details[node.ID] = node.toDetail()
	}
	return details, nil
}

func (c *APIClient) graphql(ctx context.Context, query string, vars map[string]any, out any) error {
	token, ok := c.token()
	if !ok || token == "" {
		return ErrMissingToken
	}

	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphQLEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &failure) == nil && failure.Message != "" {
			return fmt.Errorf("github api: %s", failure.Message)
		}
		return fmt.Errorf("github api error %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ErrInvalidResponse
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			messages[i] = e.Message
		}
		return fmt.Errorf("graphql: %s", strings.Join(messages, "; "))
	}
	if envelope.Data == nil {
		return ErrInvalidResponse
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return ErrInvalidResponse
	}
	return nil
}

// parseTime accepts RFC3339 with or without fractional seconds.
func parseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, err == nil
}

type viewerData struct {
	Viewer struct {
		Login string `json:"login"`
	} `json:"viewer"`
}

type searchNode struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	IsDraft   bool   `json:"isDraft"`
	Author    *struct {
		Login string `json:"login"`
	} `json:"author"`
	Repository *struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
}

func (n searchNode) toPullRequest() (domain.PullRequest, bool) {
	createdAt, okCreated := parseTime(n.CreatedAt)
	updatedAt, okUpdated := parseTime(n.UpdatedAt)
	if n.ID == "" || n.Number == 0 || n.Title == "" || n.URL == "" ||
		!okCreated || !okUpdated || n.Repository == nil || n.Repository.NameWithOwner == "" {
		return domain.PullRequest{}, false
	}

	author := "unknown"
	if n.Author != nil && n.Author.Login != "" {
		author = n.Author.Login
	}

	return domain.PullRequest{
		ID:        n.ID,
		Number:    n.Number,
		Title:     n.Title,
		URL:       n.URL,
		Repo:      n.Repository.NameWithOwner,
		Author:    author,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		IsDraft:   n.IsDraft,
		Detail:    domain.Detail{Mergeable: domain.MergeableUnknown},
	}, true
}

type searchData struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Nodes []searchNode `json:"nodes"`
	} `json:"search"`
}

type detailData struct {
	Nodes []detailNode `json:"nodes"`
}

type detailNode struct {
	ID             string `json:"id"`
	Mergeable      string `json:"mergeable"`
	ReviewDecision string `json:"reviewDecision"`
	Commits        struct {
		Nodes []struct {
			Commit struct {
				CommittedDate string `json:"committedDate"`
			} `json:"commit"`
		} `json:"nodes"`
	} `json:"commits"`
	Reviews struct {
		Nodes []struct {
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
			State       string `json:"state"`
			SubmittedAt string `json:"submittedAt"`
		} `json:"nodes"`
	} `json:"reviews"`
}

func (n detailNode) toDetail() domain.Detail {
	detail := domain.Detail{Mergeable: domain.MergeableUnknown}

	switch domain.MergeableState(n.Mergeable) {
	case domain.Mergeable, domain.Conflicting:
		detail.Mergeable = domain.MergeableState(n.Mergeable)
	}

	switch domain.ReviewDecision(n.ReviewDecision) {
	case domain.DecisionApproved, domain.DecisionChangesRequested,
		domain.DecisionReviewRequired, domain.DecisionCommented:
		detail.ReviewDecision = domain.ReviewDecision(n.ReviewDecision)
	}

	if len(n.Commits.Nodes) > 0 {
		last := n.Commits.Nodes[len(n.Commits.Nodes)-1]
		if t, ok := parseTime(last.Commit.CommittedDate); ok {
			detail.LatestCommitAt = &t
		}
	}

	for _, r := range n.Reviews.Nodes {
		if r.Author == nil || r.Author.Login == "" {
			continue
		}
		submittedAt, ok := parseTime(r.SubmittedAt)
		if !ok {
			continue
		}
		state := domain.ReviewState(r.State)
		switch state {
		case domain.ReviewApproved, domain.ReviewChangesRequested,
			domain.ReviewCommented, domain.ReviewDismissed:
		default:
			continue
		}
		detail.Reviews = append(detail.Reviews, domain.Review{
			Reviewer:    r.Author.Login,
			State:       state,
			SubmittedAt: submittedAt,
		})
	}

	return detail
}

const viewerQuery = `query Viewer { viewer { login } }`

const searchPullRequestsQuery = `query SearchPRs($query: String!, $first: Int!, $after: String) {
  search(query: $query, type: ISSUE, first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      ... on PullRequest {
        id
        number
        title
        url
        createdAt
        updatedAt
        isDraft
        author { login }
        repository { nameWithOwner }
      }
    }
  }
}`

const pullRequestDetailsQuery = `query PRDetails($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on PullRequest {
      id
      mergeable
      reviewDecision
      commits(last: 1) {
        nodes { commit { committedDate } }
      }
      reviews(last: 50) {
        nodes {
          author { login }
          state
          submittedAt
        }
      }
    }
  }
}`
