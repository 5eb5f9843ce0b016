package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prpulse/prpulse/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc, repos ...domain.RepoSubscription) *APIClient {
	t.Helper()
	c := NewAPIClient(testLogger(),
		func() (string, bool) { return "token", true },
		func() []domain.RepoSubscription { return repos })
	c.http = &http.Client{Transport: rt}
	return c
}

func TestMissingTokenFailsFast(t *testing.T) {
	c := NewAPIClient(testLogger(),
		func() (string, bool) { return "", false },
		func() []domain.RepoSubscription { return nil })
	c.http = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected without a token")
		return nil, nil
	})}

	_, err := c.FetchViewer(context.Background())
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestFetchViewer(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer token", req.Header.Get("Authorization"))
		return jsonResponse(200, `{"data":{"viewer":{"login":"octocat"}}}`), nil
	})

	login, err := c.FetchViewer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", login)
}

func TestGraphQLErrorsSurface(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"errors":[{"message":"rate limited"}]}`), nil
	})

	_, err := c.FetchViewer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestHTTPErrorUsesAPIMessage(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"message":"Bad credentials"}`), nil
	})

	_, err := c.FetchViewer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad credentials")
}

func TestGarbageResponseIsInvalid(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `<html>maintenance</html>`), nil
	})

	_, err := c.FetchViewer(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestFetchPullRequestsMergesDetails(t *testing.T) {
	searchBody := `{"data":{"search":{
	  "pageInfo":{"hasNextPage":true,"endCursor":"cur-1"},
	  "nodes":[
	    {"id":"pr-1","number":7,"title":"Add retries","url":"https://x/pull/7",
	     "createdAt":"2026-08-29T10:00:00Z","updatedAt":"2026-08-30T10:00:00Z",
	     "author":{"login":"alice"},"repository":{"nameWithOwner":"acme/api"}},
	    {"id":"","number":0,"title":"","url":""}
	  ]}}}`
	detailBody := `{"data":{"nodes":[
	  {"id":"pr-1","mergeable":"MERGEABLE","reviewDecision":"APPROVED",
	   "commits":{"nodes":[{"commit":{"committedDate":"2026-08-30T09:00:00Z"}}]},
	   "reviews":{"nodes":[
	     {"author":{"login":"bob"},"state":"APPROVED","submittedAt":"2026-08-30T09:30:00Z"},
	     {"author":null,"state":"APPROVED","submittedAt":"2026-08-30T09:31:00Z"}
	   ]}}]}}`

	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(string(body), "SearchPRs") {
			return jsonResponse(200, searchBody), nil
		}
		return jsonResponse(200, detailBody), nil
	})

	page, err := c.FetchPullRequests(context.Background(), domain.TabMine, "")
	require.NoError(t, err)

	// The malformed search node is dropped, not fatal.
	require.Len(t, page.Items, 1)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "cur-1", page.Cursor)

	pr := page.Items[0]
	assert.Equal(t, "pr-1", pr.ID)
	assert.Equal(t, "alice", pr.Author)
	assert.Equal(t, domain.Mergeable, pr.Detail.Mergeable)
	assert.Equal(t, domain.DecisionApproved, pr.Detail.ReviewDecision)
	require.NotNil(t, pr.Detail.LatestCommitAt)
	require.Len(t, pr.Detail.Reviews, 1)
	assert.Equal(t, "bob", pr.Detail.Reviews[0].Reviewer)
}

func TestWatchedPageMergesAndDedupes(t *testing.T) {
	searchTemplate := `{"data":{"search":{
	  "pageInfo":{"hasNextPage":false,"endCursor":""},
	  "nodes":[%s]}}}`
	node := func(id string, updatedAt string) string {
		return fmt.Sprintf(`{"id":%q,"number":1,"title":"t","url":"https://x/1",
		  "createdAt":"2026-08-29T10:00:00Z","updatedAt":%q,
		  "author":{"login":"alice"},"repository":{"nameWithOwner":"acme/api"}}`, id, updatedAt)
	}

	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		s := string(body)
		switch {
		case strings.Contains(s, "PRDetails"):
			return jsonResponse(200, `{"data":{"nodes":[]}}`), nil
		case strings.Contains(s, "repo:acme/api"):
			return jsonResponse(200, fmt.Sprintf(searchTemplate,
				node("shared", "2026-08-30T10:00:00Z")+","+node("only-api", "2026-08-30T08:00:00Z"))), nil
		default:
			return jsonResponse(200, fmt.Sprintf(searchTemplate,
				node("shared", "2026-08-30T12:00:00Z"))), nil
		}
	},
		domain.RepoSubscription{NameWithOwner: "acme/api"},
		domain.RepoSubscription{NameWithOwner: "acme/web"},
		domain.RepoSubscription{NameWithOwner: "acme/api"}, // duplicate subscription ignored
	)

	page, err := c.FetchPullRequests(context.Background(), domain.TabWatched, "")
	require.NoError(t, err)

	// Duplicate id keeps the newest update; result sorted newest first.
	require.Len(t, page.Items, 2)
	assert.Equal(t, "shared", page.Items[0].ID)
	assert.Equal(t, 12, page.Items[0].UpdatedAt.Hour())
	assert.Equal(t, "only-api", page.Items[1].ID)
	assert.False(t, page.HasNextPage)
}

func TestWatchedPageHasNoSecondPage(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected for a non-empty watched cursor")
		return nil, nil
	}, domain.RepoSubscription{NameWithOwner: "acme/api"})

	page, err := c.FetchPullRequests(context.Background(), domain.TabWatched, "anything")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNextPage)
}

func TestMockClientPagination(t *testing.T) {
	c := NewMockClient("octocat")
	ctx := context.Background()

	first, err := c.FetchPullRequests(ctx, domain.TabMine, "")
	require.NoError(t, err)
	assert.Len(t, first.Items, pageSize)
	assert.True(t, first.HasNextPage)
	require.NotEmpty(t, first.Cursor)

	second, err := c.FetchPullRequests(ctx, domain.TabMine, first.Cursor)
	require.NoError(t, err)
	assert.Len(t, second.Items, 15)
	assert.False(t, second.HasNextPage)
	assert.Empty(t, second.Cursor)

	// No overlap between pages.
	seen := make(map[string]bool)
	for _, pr := range append(first.Items, second.Items...) {
		assert.False(t, seen[pr.ID])
		seen[pr.ID] = true
	}

	_, err = c.FetchPullRequests(ctx, domain.TabMine, "not-a-number")
	assert.Error(t, err)

	past, err := c.FetchPullRequests(ctx, domain.TabMine, "9999")
	require.NoError(t, err)
	assert.Empty(t, past.Items)
}

func TestMockClientViewer(t *testing.T) {
	login, err := NewMockClient("").FetchViewer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", login)
}

func TestSearchNodeValidation(t *testing.T) {
	valid := searchNode{
		ID: "pr-1", Number: 7, Title: "t", URL: "https://x/1",
		CreatedAt: "2026-08-29T10:00:00Z", UpdatedAt: "2026-08-30T10:00:00Z",
		Repository: &struct {
			NameWithOwner string `json:"nameWithOwner"`
		}{NameWithOwner: "acme/api"},
	}

	pr, ok := valid.toPullRequest()
	require.True(t, ok)
	assert.Equal(t, "unknown", pr.Author) // deleted account
	assert.Equal(t, domain.MergeableUnknown, pr.Detail.Mergeable)

	broken := valid
	broken.UpdatedAt = "yesterday"
	_, ok = broken.toPullRequest()
	assert.False(t, ok)

	broken = valid
	broken.Repository = nil
	_, ok = broken.toPullRequest()
	assert.False(t, ok)
}

func TestDetailNodeToleratesBadEnums(t *testing.T) {
	node := detailNode{ID: "pr-1", Mergeable: "WAT", ReviewDecision: "WAT"}
	node.Reviews.Nodes = []struct {
		Author *struct {
			Login string `json:"login"`
		} `json:"author"`
		State       string `json:"state"`
		SubmittedAt string `json:"submittedAt"`
	}{
		{Author: &struct {
			Login string `json:"login"`
		}{Login: "alice"}, State: "PENDING", SubmittedAt: "2026-08-30T10:00:00Z"},
		{Author: &struct {
			Login string `json:"login"`
		}{Login: "bob"}, State: "APPROVED", SubmittedAt: "not-a-time"},
	}

	detail := node.toDetail()
	assert.Equal(t, domain.MergeableUnknown, detail.Mergeable)
	assert.Empty(t, detail.ReviewDecision)
	assert.Nil(t, detail.LatestCommitAt)
	assert.Empty(t, detail.Reviews)
}

func TestParseTime(t *testing.T) {
	got, ok := parseTime("2026-08-30T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), got)

	got, ok = parseTime("2026-08-30T10:00:00.123Z")
	require.True(t, ok)
	assert.Equal(t, 123000000, got.Nanosecond())

	_, ok = parseTime("")
	assert.False(t, ok)
	_, ok = parseTime("yesterday")
	assert.False(t, ok)
}
