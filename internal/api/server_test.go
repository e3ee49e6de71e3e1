package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaxe-dev/Tremor-Pro/internal/interpret"
	"github.com/spaxe-dev/Tremor-Pro/internal/metrics"
	"github.com/spaxe-dev/Tremor-Pro/internal/ml"
	"github.com/spaxe-dev/Tremor-Pro/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a server with a fallback-mode classifier, an
// unconfigured interpretation client (placeholder reports) and an optional
// store.
func newTestServer(t *testing.T, store *storage.Store) *Server {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	classifier := ml.NewService(filepath.Join(t.TempDir(), "missing.json"), metrics.NewMLAdapter(m))
	interp := interpret.NewClient(interpret.Config{}, metrics.NewInterpretAdapter(m))
	return New(8000, classifier, store, interp, m)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestClassifyEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodPost, "/classify",
		`{"b1": 5.0, "b2": 0.5, "b3": 0.3, "meanNorm": 0.2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var res ml.WindowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "parkinsonian", res.Prediction)
	assert.True(t, res.IsTremor)
	assert.Equal(t, ml.FallbackVersion, res.ModelVersion)
	assert.Len(t, res.Probabilities, ml.NumClasses)
}

func TestClassifyMissingFieldsDefaultToZero(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodPost, "/classify", `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var res ml.WindowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "no_tremor", res.Prediction)
	assert.False(t, res.IsTremor)
}

func TestClassifyRejectsBadJSON(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodPost, "/classify", `{"b1": "not a number"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassifyRejectsGet(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/classify", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestClassifyBatchWithoutModel(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodPost, "/classify/batch",
		`[{"b1": 5.0, "b2": 0.5, "b3": 0.3, "meanNorm": 0.2}]`)

	// Degraded conditions still answer 200 with an error-shaped body.
	require.Equal(t, http.StatusOK, rec.Code)
	var res ml.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "no model loaded or empty input", res.Error)
}

func TestAnalyzeEndpoint(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s := newTestServer(t, store)
	summary := `{
		"metadata": {"session_id": "sess-42", "duration_minutes": 30},
		"frequency_profile": {"band_power_mean": {"hz_4_6": 3.1, "hz_6_8": 0.4, "hz_8_12": 0.2}},
		"intensity_profile": {"tremor_score": {"mean": 4.2}, "rms_mean": 0.3}
	}`
	rec := doRequest(s, http.MethodPost, "/analyze", summary)

	require.Equal(t, http.StatusOK, rec.Code)
	var report interpret.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.ClinicalSummary)
	assert.NotEmpty(t, report.ConfidenceLevel)
	assert.Contains(t, report.AdvisoryNote, "does not constitute a medical diagnosis")
	assert.Equal(t, "placeholder", report.Source)

	// The session with its raw summary landed in the store.
	sessions, err := store.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotEmpty(t, sessions[0].ID)
	assert.JSONEq(t, summary, string(sessions[0].RawSummary))
	assert.Equal(t, report.ClinicalSummary, sessions[0].ClinicalSummary)
}

func TestAnalyzeWithoutStore(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodPost, "/analyze", `{"metadata": {"session_id": "x"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var report interpret.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.ClinicalSummary)
}

func TestAnalyzeRejectsBadJSON(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodPost, "/analyze", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsEndpoint(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s := newTestServer(t, store)
	doRequest(s, http.MethodPost, "/analyze", `{"metadata": {"session_id": "a"}}`)
	doRequest(s, http.MethodPost, "/analyze", `{"metadata": {"session_id": "b"}}`)

	rec := doRequest(s, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sessions []storage.SessionRecord `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Sessions, 2)
}

func TestSessionsWithoutStore(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/sessions", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disabled", body["persistence"])
}

func TestModelInfoEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/model/info", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var info ml.ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.False(t, info.Available)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
