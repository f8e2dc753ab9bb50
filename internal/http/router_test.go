package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/HamedShams/sprint-audit/internal/repo"
	"github.com/HamedShams/sprint-audit/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	runs    chan services.RunOptions
	lastRun *repo.LastRun
	lastErr error
}

func (f *fakeService) RunDaily(_ context.Context, opts services.RunOptions) (*services.RunResult, error) {
	f.runs <- opts
	return &services.RunResult{}, nil
}

func (f *fakeService) GetLastRun(context.Context) (*repo.LastRun, error) {
	return f.lastRun, f.lastErr
}

func newTestRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(config.Config{AppEnv: "test", SendMail: true}, zerolog.Nop(), svc)
}

func do(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealthz(t *testing.T) {
	w := do(newTestRouter(&fakeService{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestLastRun(t *testing.T) {
	svc := &fakeService{lastRun: &repo.LastRun{RunUID: "u-1", Sprint: "R1", Findings: 4, Success: true}}
	w := do(newTestRouter(svc), http.MethodGet, "/admin/last-run")
	require.Equal(t, http.StatusOK, w.Code)
	var got repo.LastRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "R1", got.Sprint)
	assert.Equal(t, 4, got.Findings)
}

func TestLastRun_NotFound(t *testing.T) {
	for _, err := range []error{repo.ErrNoRuns, services.ErrHistoryDisabled} {
		w := do(newTestRouter(&fakeService{lastErr: err}), http.MethodGet, "/admin/last-run")
		assert.Equal(t, http.StatusNotFound, w.Code, err.Error())
	}
}

func TestRunNow_Queues(t *testing.T) {
	svc := &fakeService{runs: make(chan services.RunOptions, 2)}
	r := newTestRouter(svc)

	w := do(r, http.MethodPost, "/admin/run")
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = do(r, http.MethodPost, "/admin/run?mail=false")
	assert.Equal(t, http.StatusAccepted, w.Code)

	var got []bool
	for i := 0; i < 2; i++ {
		select {
		case o := <-svc.runs:
			got = append(got, o.SendMail)
		case <-time.After(2 * time.Second):
			t.Fatal("run was not triggered")
		}
	}
	assert.ElementsMatch(t, []bool{true, false}, got)
}
