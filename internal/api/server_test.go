package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/regingest/internal/config"
	"github.com/dgallion1/regingest/internal/indexer"
	"github.com/dgallion1/regingest/internal/pipeline"
	"github.com/dgallion1/regingest/internal/store"
	"github.com/dgallion1/regingest/internal/store/memory"
	"github.com/dgallion1/regingest/internal/versioning"
)

const testKey = "secret"

type testEnv struct {
	srv    *Server
	runner *pipeline.Runner
	store  *memory.Store
}

func newTestEnv(t *testing.T, started bool) testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{APIKey: testKey, WorkerCount: 2, UseCache: true, LowConfidenceThreshold: 0.3, Indexer: config.IndexerMemory}

	st := memory.New()
	stats := indexer.NewStats(time.Hour)
	ix := indexer.Instrument(indexer.NewMemory(indexer.Limits{}), stats)
	coord := pipeline.NewCoordinator(cfg, ix, st, versioning.NewDetector(st, 0, log), nil, log)
	rn := pipeline.NewRunner(coord, 4, 1, time.Hour, "", log)
	if started {
		rn.Start(context.Background())
	}
	t.Cleanup(rn.Stop)

	return testEnv{srv: NewServer(rn, stats, log, cfg), runner: rn, store: st}
}

func (e testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, false)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer " + testKey, http.StatusOK},
		{"api key header", "X-API-Key", testKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/versions/conflicts", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			env.srv.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCreateRun_Validation(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "invalid request body"},
		{"empty", `{}`, "directory or paths is required"},
		{"both", `{"directory":"/tmp","paths":["a.txt"]}`, "mutually exclusive"},
		{"unsupported", `{"paths":["book.xls"]}`, "unsupported file type: .xls"},
		{"blank path", `{"paths":[" "]}`, "empty entries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode(t, rec)["error"], tt.want)
		})
	}
}

func TestRunLifecycle(t *testing.T) {
	env := newTestEnv(t, true)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gst_circular.txt"), []byte("1 INTRODUCTION\nGST registration guidance for businesses."), 0o644))

	body, err := json.Marshal(pipeline.RunRequest{Directory: dir})
	require.NoError(t, err)
	rec := env.do(t, http.MethodPost, "/api/runs", string(body))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id, _ := created["run_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/runs/"+id, created["status_url"])

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/runs/"+id, "")
		var snap pipeline.RunSnapshot
		return json.Unmarshal(rec.Body.Bytes(), &snap) == nil && snap.State == pipeline.RunCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = env.do(t, http.MethodGet, "/api/runs/"+id+"/report.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "BATCH PROCESSING REPORT")
	assert.Contains(t, rec.Body.String(), "Successful: 1")

	rec = env.do(t, http.MethodDelete, "/api/runs/"+id, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/stats/indexer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.Equal(t, "memory", stats["indexer"])
	assert.EqualValues(t, 1, stats["stats"].(map[string]any)["pushes"])
}

func TestCancelQueuedRun(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/runs", `{"paths":["a.txt"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode(t, rec)["run_id"].(string)

	rec = env.do(t, http.MethodGet, "/api/runs/"+id+"/report.txt", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/runs/"+id, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, string(pipeline.RunCancelled), decode(t, rec)["state"])
}

func TestUnknownRun(t *testing.T) {
	env := newTestEnv(t, false)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := env.do(t, method, "/api/runs/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
	rec := env.do(t, http.MethodGet, "/api/runs/nope/report.txt", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVersionEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	for _, v := range []store.DocumentVersion{
		{Filename: "income_tax_guide_2023.pdf", Family: "income_tax_guide", VersionDate: "2023-01-01", IsCurrent: true, RegisteredAt: time.Now()},
		{Filename: "income_tax_guide_2024.pdf", Family: "income_tax_guide", VersionDate: "2024-01-01", IsCurrent: true, RegisteredAt: time.Now()},
	} {
		require.NoError(t, env.store.PutVersion(ctx, v))
	}

	rec := env.do(t, http.MethodGet, "/api/versions/conflicts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var conflicts struct {
		Conflicts []versioning.Conflict `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflicts))
	require.Len(t, conflicts.Conflicts, 1)
	assert.Equal(t, "income_tax_guide", conflicts.Conflicts[0].Family)

	rec = env.do(t, http.MethodGet, "/api/versions/families/income_tax_guide", "")
	require.Equal(t, http.StatusOK, rec.Code)
	fam := decode(t, rec)
	assert.Len(t, fam["history"], 2)
	assert.Equal(t, "income_tax_guide_2024.pdf", fam["current"].(map[string]any)["filename"])

	rec = env.do(t, http.MethodPost, "/api/versions/files/income_tax_guide_2023.pdf/retire", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/versions/conflicts", "")
	assert.JSONEq(t, `{"conflicts":[]}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/versions/files/unknown.pdf/retire", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/versions/families/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
