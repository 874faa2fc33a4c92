package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/orchestrator"
	qsqlite "github.com/ternarybob/meridian/internal/queue/sqlite"
	"github.com/ternarybob/meridian/internal/storage"
	sbadger "github.com/ternarybob/meridian/internal/store/badger"
)

func newTestServer(t *testing.T) *Server {
	ctx := context.Background()
	st, err := sbadger.New(arbor.NewLogger(), sbadger.Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	q, err := qsqlite.Open(ctx, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	layout := storage.New(arbor.NewLogger(), t.TempDir())
	orch := orchestrator.New(st, q, layout, arbor.NewLogger())
	return New(orch, arbor.NewLogger(), ":0")
}

func singleStepBody() []byte {
	body, _ := json.Marshal(orchestrator.JobRequest{
		Steps: []orchestrator.StepRequest{
			{Name: "only", Service: "svc", CommandSpec: models.CommandSpec{Program: "p"}},
		},
	})
	return body
}

func TestPostJobsCreatesJob(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(singleStepBody()))
	rec := httptest.NewRecorder()

	s.withMiddleware(s.setupRoutes()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var job models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotEmpty(t, job.JobID)
}

func TestPostJobsRejectsEmptyStepsWith400(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(orchestrator.JobRequest{})
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.withMiddleware(s.setupRoutes()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobReturns200ThenMissingReturns404(t *testing.T) {
	s := newTestServer(t)
	handler := s.withMiddleware(s.setupRoutes())

	createReq := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(singleStepBody()))
	createRec := httptest.NewRecorder()
	handler.ServeHTTP(createRec, createReq)
	var job models.Job
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &job))

	getReq := httptest.NewRequest(http.MethodGet, "/jobs/"+job.JobID, nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	missingReq := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil)
	missingRec := httptest.NewRecorder()
	handler.ServeHTTP(missingRec, missingReq)
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestRetryOnCompleteJobReturns400(t *testing.T) {
	s := newTestServer(t)
	handler := s.withMiddleware(s.setupRoutes())

	createReq := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(singleStepBody()))
	createRec := httptest.NewRecorder()
	handler.ServeHTTP(createRec, createReq)
	var job models.Job
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &job))

	s.orch.HandleStatus(context.Background(), models.StepStatus{
		JobID: job.JobID, StepID: job.Steps[0].StepID, Status: models.StatusComplete,
	})

	retryReq := httptest.NewRequest(http.MethodPost, "/jobs/"+job.JobID+"/retry", nil)
	retryRec := httptest.NewRecorder()
	handler.ServeHTTP(retryRec, retryReq)
	assert.Equal(t, http.StatusBadRequest, retryRec.Code)
}

func TestCorsPreflightReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	rec := httptest.NewRecorder()
	s.withMiddleware(s.setupRoutes()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
