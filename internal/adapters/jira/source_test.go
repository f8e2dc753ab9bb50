package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/HamedShams/sprint-audit/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, h http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(config.Config{
		JiraBaseURL:    srv.URL,
		JiraUsername:   "auditor",
		JiraPassword:   "secret",
		JiraAPIVersion: "2",
		HTTPTimeout:    5 * time.Second,
	}, zerolog.Nop())
	c.backoff = time.Millisecond
	s := NewSource(c, zerolog.Nop())
	s.pageSize = 2
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearch_PaginatesAndMaps(t *testing.T) {
	all := []map[string]any{
		{"key": "APP-1", "fields": map[string]any{
			"assignee":     map[string]any{"name": "alice"},
			"status":       map[string]any{"name": "In Progress"},
			"issuetype":    map[string]any{"name": "Bug"},
			"duedate":      "2026-10-20",
			"timeestimate": 7200,
			"fixVersions":  []any{map[string]any{"name": "R1"}},
			"labels":       []any{"exclude_from_metrics"},
			"updated":      "2026-10-14T09:30:00.000+0300",
		}},
		{"key": "APP-2", "fields": map[string]any{"assignee": map[string]any{"name": "alice"}, "timeestimate": nil}},
		{"key": "APP-3", "fields": map[string]any{}},
	}
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		assert.Equal(t, `assignee = "alice"`, r.URL.Query().Get("jql"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "auditor", user)
		assert.Equal(t, "secret", pass)
		start, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		end := start + 2
		if end > len(all) {
			end = len(all)
		}
		writeJSON(w, map[string]any{"startAt": start, "maxResults": 2, "total": len(all), "issues": all[start:end]})
	})

	issues, err := src.Search(context.Background(), `assignee = "alice"`)
	require.NoError(t, err)
	require.Len(t, issues, 3)

	first := issues[0]
	assert.Equal(t, "APP-1", first.Key)
	assert.Equal(t, "alice", first.Assignee)
	assert.Equal(t, "In Progress", first.Status)
	assert.Equal(t, "Bug", first.Type)
	require.NotNil(t, first.DueDate)
	assert.Equal(t, "2026-10-20", first.DueDate.Format("2006-01-02"))
	require.NotNil(t, first.TimeEstimate)
	assert.EqualValues(t, 7200, *first.TimeEstimate)
	assert.Equal(t, []string{"R1"}, first.FixVersions)
	assert.True(t, first.HasLabel("exclude_from_metrics"))
	assert.Equal(t, 14, first.Updated.Day())

	assert.Nil(t, issues[1].TimeEstimate)
	assert.Nil(t, issues[1].DueDate)
	assert.Empty(t, issues[2].Assignee)
}

func TestSearch_RetriesServerErrors(t *testing.T) {
	var calls int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"total": 0, "issues": []any{}})
	})
	issues, err := src.Search(context.Background(), "project = APP")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSearch_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"errorMessages":["bad jql"]}`, http.StatusBadRequest)
	})
	_, err := src.Search(context.Background(), "assignee = ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSearch_MalformedPayload(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"total": 1, "issues": []any{
			map[string]any{"key": "APP-1", "fields": map[string]any{"duedate": "next friday"}},
		}})
	})
	_, err := src.Search(context.Background(), "project = APP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP-1 duedate")
}

func TestWorklogs(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/APP-7/worklog", r.URL.Path)
		writeJSON(w, map[string]any{"startAt": 0, "maxResults": 100, "total": 2, "worklogs": []any{
			map[string]any{"author": map[string]any{"name": "bob"}, "started": "2026-10-13T23:30:00.000+0300", "timeSpent": "1d"},
			map[string]any{"author": map[string]any{"accountId": "5b10"}, "started": "2026-10-13T08:00:00.000+0000", "timeSpent": "30m"},
		}})
	})
	wls, err := src.Worklogs(context.Background(), "APP-7")
	require.NoError(t, err)
	require.Len(t, wls, 2)
	assert.Equal(t, "bob", wls[0].Author)
	assert.Equal(t, 13, wls[0].Started.Day(), "calendar day in the author's offset")
	assert.Equal(t, "5b10", wls[1].Author)
	assert.Equal(t, "APP-7", wls[1].IssueKey)
}

func TestResolveSprint(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/project/APPLINK/versions", r.URL.Path)
		writeJSON(w, []any{
			map[string]any{"name": "R0", "startDate": "2026-09-21", "releaseDate": "2026-10-02"},
			map[string]any{"name": "R1", "startDate": "2026-10-05", "releaseDate": "2026-10-19"},
			map[string]any{"name": "R2"},
		})
	})
	w, err := src.ResolveSprint(context.Background(), "APPLINK", "R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", w.Name)
	assert.Equal(t, "2026-10-05", w.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2026-10-19", w.ReleaseDate.Format("2006-01-02"))

	_, err = src.ResolveSprint(context.Background(), "APPLINK", "R9")
	assert.ErrorIs(t, err, domain.ErrUnresolvedSprint)

	_, err = src.ResolveSprint(context.Background(), "APPLINK", "R2")
	assert.ErrorIs(t, err, domain.ErrUnresolvedSprint)
}
