/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// issueFields limits search payloads to what the audit rules read.
const issueFields = "assignee,status,issuetype,duedate,timeestimate,fixVersions,labels,updated"

type Client struct {
	baseURL string
	token   string
	user    string
	pass    string
	http    *http.Client
	log     zerolog.Logger
	apiVer  string
	limiter *rate.Limiter
	backoff time.Duration
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	limit := rate.Inf
	if cfg.JiraRPS > 0 {
		limit = rate.Limit(cfg.JiraRPS)
	}
	return &Client{
		baseURL: cfg.JiraBaseURL,
		token:   cfg.JiraPAT,
		user:    cfg.JiraUsername,
		pass:    cfg.JiraPassword,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
		apiVer:  cfg.JiraAPIVersion,
		limiter: rate.NewLimiter(limit, 1),
		backoff: 300 * time.Millisecond,
	}
}

func (c *Client) apiURL(path string, q url.Values) string {
	base := strings.TrimRight(c.baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := base + path
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

func (c *Client) restPath(rest string) string {
	if c.apiVer == "3" {
		return "/rest/api/3/" + rest
	}
	return "/rest/api/2/" + rest
}

// doJSON decodes the response into out, retrying 429 and 5xx with backoff.
func (c *Client) doJSON(ctx context.Context, method, u string, body, out any) error {
	if c.baseURL == "" {
		return errors.New("jira: empty baseURL")
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, r)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		} else if c.user != "" && c.pass != "" {
			req.SetBasicAuth(c.user, c.pass)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			retry, err := decode(resp, out)
			if !retry {
				return err
			}
			lastErr = err
		}
		c.log.Debug().Err(lastErr).Int("attempt", attempt+1).Str("url", u).Msg("jira request retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(1<<attempt)):
		}
	}
	return lastErr
}

func decode(resp *http.Response, out any) (retry bool, err error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, err
	}
	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("jira: malformed response: %w", err)
	}
	return false, nil
}

type user struct {
	Name        string `json:"name"`
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// login is the Server username, falling back to the Cloud account id.
func (u *user) login() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.AccountID
}

type named struct {
	Name string `json:"name"`
}

type issue struct {
	Key    string `json:"key"`
	Fields struct {
		Assignee     *user    `json:"assignee"`
		Status       *named   `json:"status"`
		IssueType    *named   `json:"issuetype"`
		DueDate      string   `json:"duedate"`
		TimeEstimate *int64   `json:"timeestimate"`
		FixVersions  []named  `json:"fixVersions"`
		Labels       []string `json:"labels"`
		Updated      string   `json:"updated"`
	} `json:"fields"`
}

type searchPage struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []issue `json:"issues"`
}

type worklog struct {
	Author       *user  `json:"author"`
	UpdateAuthor *user  `json:"updateAuthor"`
	Started      string `json:"started"`
	TimeSpent    string `json:"timeSpent"`
}

type worklogPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []worklog `json:"worklogs"`
}

type version struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	StartDate   string `json:"startDate"`
	ReleaseDate string `json:"releaseDate"`
	Released    bool   `json:"released"`
}

func (c *Client) Search(ctx context.Context, jql string, startAt, max int) (*searchPage, error) {
	if jql == "" {
		return nil, errors.New("jira: empty jql")
	}
	var page searchPage
	if c.apiVer != "3" {
		q := url.Values{}
		q.Set("jql", jql)
		if startAt > 0 {
			q.Set("startAt", fmt.Sprint(startAt))
		}
		if max > 0 {
			q.Set("maxResults", fmt.Sprint(max))
		}
		q.Set("fields", issueFields)
		if err := c.doJSON(ctx, http.MethodGet, c.apiURL(c.restPath("search"), q), nil, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}
	body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max, "fields": strings.Split(issueFields, ",")}
	if err := c.doJSON(ctx, http.MethodPost, c.apiURL(c.restPath("search"), nil), body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Worklogs(ctx context.Context, key string, startAt, max int) (*worklogPage, error) {
	if key == "" {
		return nil, errors.New("jira: empty issue key")
	}
	q := url.Values{}
	if startAt > 0 {
		q.Set("startAt", fmt.Sprint(startAt))
	}
	if max > 0 {
		q.Set("maxResults", fmt.Sprint(max))
	}
	u := c.apiURL(c.restPath("issue/"+url.PathEscape(key)+"/worklog"), q)
	var page worklogPage
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ProjectVersions lists every fix-version of a project.
func (c *Client) ProjectVersions(ctx context.Context, project string) ([]version, error) {
	if project == "" {
		return nil, errors.New("jira: empty project")
	}
	u := c.apiURL(c.restPath("project/"+url.PathEscape(project)+"/versions"), nil)
	var out []version
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
