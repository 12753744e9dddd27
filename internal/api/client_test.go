package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithHTTPClient(srv.Client()), WithUserAgent("tally-test"))
}

func TestListEntriesSendsTokenAndFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/entries", r.URL.Path)
		assert.Equal(t, "c1", r.URL.Query().Get("challengeId"))
		assert.Empty(t, r.URL.Query().Get("date"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "tally-test", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, `[{"id":"e1","challengeId":"c1","date":"2024-01-01","count":10,"someNewField":true}]`)
	})

	entries, err := client.ListEntries(context.Background(), "tok", models.EntryFilter{ChallengeID: "c1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, 10, entries[0].Count)
}

func TestListChallengesActiveQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("active"))
		_, _ = io.WriteString(w, `{"data":[{"id":"c1","name":"Run","target":100,"timeframeUnit":"year","year":2025,"archived":true}]}`)
	})

	active := false
	got, err := client.ListChallenges(context.Background(), "tok", models.ChallengeFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Archived)
}

func TestCreateChallengeBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p models.ChallengePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "Pushups", p.Name)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"srv_1","name":"Pushups","target":100,"timeframeUnit":"year","year":2025,"createdAt":1735689600000}`)
	})

	got, err := client.CreateChallenge(context.Background(), "tok", models.ChallengePayload{
		Name: "Pushups", Target: 100, TimeframeUnit: constants.TimeframeYear, Year: 2025,
	})
	require.NoError(t, err)
	assert.Equal(t, "srv_1", got.ID)
	assert.Equal(t, 2025, got.CreatedAt.Year())
}

func TestUpdateAndDeletePaths(t *testing.T) {
	var seen []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.EscapedPath())
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = io.WriteString(w, `{"id":"e 1","challengeId":"c1","date":"2024-01-01","count":3}`)
	})
	ctx := context.Background()

	count := 3
	_, err := client.UpdateEntry(ctx, "tok", "e 1", models.EntryPatch{Count: &count})
	require.NoError(t, err)
	require.NoError(t, client.DeleteEntry(ctx, "tok", "e 1"))
	require.NoError(t, client.UnfollowChallenge(ctx, "tok", "f1"))

	assert.Equal(t, []string{
		"PATCH /api/v1/entries/e%201",
		"DELETE /api/v1/entries/e%201",
		"DELETE /api/v1/followed/f1",
	}, seen)
}

func TestPublicChallengesSendNoToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/challenges", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	})

	got, err := client.ListPublicChallenges(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		sentinel  error
		kind      Kind
		retryable bool
	}{
		{401, `{"message":"token expired"}`, ErrUnauthorized, KindUnauthorized, true},
		{403, ``, ErrForbidden, KindForbidden, false},
		{404, `{"error":"no such entry"}`, ErrNotFound, KindNotFound, false},
		{400, `{"errors":{"count":"must be positive"}}`, ErrBadRequest, KindBadRequest, false},
		{422, `{"fields":{"date":["invalid","required"]}}`, ErrBadRequest, KindBadRequest, false},
		{409, `{"error":{"message":"duplicate"}}`, ErrConflict, KindConflict, false},
		{429, ``, ErrRateLimited, KindRateLimited, true},
		{503, `upstream down`, ErrServer, KindServerError, true},
		{418, ``, ErrUnknown, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.ListFollowed(context.Background(), "tok")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestBadRequestFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		_, _ = io.WriteString(w, `{"message":"invalid entry","errors":{"count":"must equal sets total","date":["required"]}}`)
	})

	_, err := client.CreateEntry(context.Background(), "tok", models.EntryPayload{ChallengeID: "c1", Date: "2025-01-01"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid entry", apiErr.Message)
	assert.Equal(t, map[string]string{"count": "must equal sets total", "date": "required"}, apiErr.Fields)
	assert.Contains(t, apiErr.Error(), "count: must equal sets total")
}

func TestRateLimitedRetryAfter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListFollowed(context.Background(), "tok")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.Contains(t, apiErr.Hint(), "7s")
}

func TestParseRetryAfterDate(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter("garbage", now))
	assert.Zero(t, parseRetryAfter("-3", now))
}

func TestDecodeFailureIsParseError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": 12`)
	})

	_, err := client.CreateChallenge(context.Background(), "tok", models.ChallengePayload{Name: "x"})
	assert.ErrorIs(t, err, ErrParse)
}

func TestOversizedBodyIsParseError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `["`+strings.Repeat("a", constants.MaxResponseBytes)+`"]`)
	})

	_, err := client.ListPublicChallenges(context.Background())
	assert.ErrorIs(t, err, ErrParse)
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := New(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := client.ListFollowed(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).ListFollowed(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotEmpty(t, (&Error{Kind: KindNetwork}).Hint())
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestCustomDoer(t *testing.T) {
	client := New("https://api.example.test/", WithHTTPClient(doerFunc(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "https://api.example.test/api/v1/followed", r.URL.String())
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(`[{"id":"f1","challengeId":"c1","followedAt":"2025-02-01T00:00:00Z"}]`)),
			Header:     http.Header{},
		}, nil
	})))

	got, err := client.ListFollowed(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ChallengeID)
}
