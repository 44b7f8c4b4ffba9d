package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/patternlab/graphscout/internal/errors"
	"github.com/patternlab/graphscout/pkg/annotation"
	"github.com/patternlab/graphscout/pkg/api"
	"github.com/patternlab/graphscout/pkg/history"
)

type stubHistory struct {
	entries []history.Entry
}

func (s *stubHistory) Refresh(context.Context) []history.Entry {
	return s.entries
}

type stubAnnotations struct {
	rec *annotation.Record
	err error
}

func (s *stubAnnotations) Get(context.Context, string) (*annotation.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rec, nil
}

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New("localhost", 0, deps).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decodeError(t *testing.T, resp *http.Response) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Deps{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestVersion(t *testing.T) {
	srv := newTestServer(t, Deps{Version: "1.2.3"})

	resp, err := http.Get(srv.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "1.2.3", body["version"])
}

func TestNotFoundEnvelope(t *testing.T) {
	srv := newTestServer(t, Deps{})

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, string(apperrors.CodeNotFound), body.Error.Code)
}

func TestMethodNotAllowedEnvelope(t *testing.T) {
	srv := newTestServer(t, Deps{})

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, string(apperrors.CodeMethodNotAllowed), body.Error.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	srv := newTestServer(t, Deps{
		History: &stubHistory{entries: []history.Entry{
			{AnnotationID: "ann-1", Title: "Proteins", CreatedAt: created},
		}},
	})

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []history.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "ann-1", entries[0].AnnotationID)
	assert.Equal(t, "Proteins", entries[0].Title)
}

func TestHistoryEndpointEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, Deps{History: &stubHistory{}})

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	var entries []history.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestHistoryEndpointUnconfigured(t *testing.T) {
	srv := newTestServer(t, Deps{})

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, string(apperrors.CodeInternal), body.Error.Code)
}

func TestJobEndpoint(t *testing.T) {
	srv := newTestServer(t, Deps{
		Annotations: &stubAnnotations{rec: &annotation.Record{
			JobID:  "job-7",
			Status: annotation.StatusComplete,
		}},
	})

	resp, err := http.Get(srv.URL + "/jobs/job-7")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec annotation.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "job-7", rec.JobID)
	assert.Equal(t, annotation.StatusComplete, rec.Status)
}

func TestJobEndpointNotFoundMapsUpstream404(t *testing.T) {
	srv := newTestServer(t, Deps{
		Annotations: &stubAnnotations{err: &api.APIError{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
		}},
	})

	resp, err := http.Get(srv.URL + "/jobs/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, string(apperrors.CodeNotFound), body.Error.Code)
}

func TestJobEndpointUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, Deps{
		Annotations: &stubAnnotations{err: errors.New("connection refused")},
	})

	resp, err := http.Get(srv.URL + "/jobs/job-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, string(apperrors.CodeUpstreamUnavailable), body.Error.Code)
}
