package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/extract"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/llm/llmtest"
	"github.com/dgallion1/edugest/internal/pipeline"
	"github.com/dgallion1/edugest/internal/segment"
	"github.com/dgallion1/edugest/internal/store"
)

const apiKey = "test-key"

const foxText = `The fox lived at the edge of the forest, in a burrow under an old oak tree.
Every evening it walked to the river to drink and watch the herons.

Where did the fox live?`

const extractReply = `{
  "assertions": [{"text": "The fox lived at the edge of the forest.", "category": "fact"}],
  "questions": [{"text": "Where did the fox live?", "type": "SHORT_ANSWER", "correctAnswer": "At the edge of the forest"}]
}`

const classifyReply = `{"documentType": "comprehension", "confidence": 0.8, "reasoning": "A passage followed by questions."}`

type testServer struct {
	srv   *Server
	store *store.Store
	inv   *llmtest.Invoker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(t.TempDir(), "edugest.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	configs, err := config.NewExtractionStore("")
	require.NoError(t, err)

	inv := &llmtest.Invoker{Handler: func(c llmtest.Call) (string, error) {
		switch c.CallPoint {
		case llm.CallExtract:
			return extractReply, nil
		case llm.CallClassify:
			return classifyReply, nil
		}
		return "", errors.New("unexpected call point " + c.CallPoint)
	}}

	classifier := classify.New(inv, log)
	deps := pipeline.Deps{
		Classifier:  classifier,
		Segmenter:   segment.New(inv, log),
		Extractors:  extract.NewRegistry(inv, log),
		Configs:     configs,
		Corrections: st,
		Store:       st,
	}
	orch := pipeline.NewOrchestrator(pipeline.Options{WorkerCount: 1, MaxQueueSize: 4}, pipeline.NewMemoryTracker(time.Hour), deps, log)
	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)
	t.Cleanup(func() {
		cancel()
		orch.Stop()
	})

	svc := Services{
		Classifier:  classifier,
		Configs:     configs,
		Corrections: st,
		Structurer:  pipeline.NewStructurer(st, configs, inv, log),
		Stats:       llm.NewLLMStats(time.Hour),
		Calls:       st,
		Model:       "test-model",
	}
	cfg := config.Config{APIKey: apiKey, MaxUploadBytes: 1 << 20}
	return &testServer{srv: NewServer(orch, svc, log, cfg), store: st, inv: inv}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth_NoAuth(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ts.srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestIngest_RunsToCompletion(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, upload(t, "/api/ingest", "fox.txt", foxText, map[string]string{
		"declared_type": "worksheet",
		"qualification": "KS2 English",
	}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode(t, rec)
	jobID, _ := accepted["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.True(t, strings.HasPrefix(accepted["source_id"].(string), "src-"))

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/ingest/"+jobID+"/status", nil)
		req.Header.Set("Authorization", "Bearer "+apiKey)
		ts.srv.ServeHTTP(rec, req)
		var snap pipeline.JobSnapshot
		return json.Unmarshal(rec.Body.Bytes(), &snap) == nil && snap.Status == pipeline.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/ingest/"+jobID+"/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status         string                  `json:"status"`
		Classification classify.Classification `json:"classification"`
		Result         extract.Result          `json:"result"`
		Saved          store.SaveStats         `json:"saved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, classify.TypeWorksheet, body.Classification.DocumentType)
	require.Len(t, body.Result.Assertions, 1)
	require.Len(t, body.Result.Questions, 1)
	assert.Equal(t, store.SaveStats{Assertions: 1, Questions: 1}, body.Saved)

	for _, c := range ts.inv.Calls() {
		assert.Equal(t, llm.CallExtract, c.CallPoint)
	}
}

func TestIngest_RejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, upload(t, "/api/ingest", "fox.exe", foxText, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "unsupported file type")

	rec = ts.do(t, upload(t, "/api/ingest", "fox.txt", foxText, map[string]string{"declared_type": "novel"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "declared_type")

	rec = ts.do(t, upload(t, "/api/ingest", "fox.txt", foxText, map[string]string{"domain": "../../outside/evil"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid domain")

	rec = ts.do(t, upload(t, "/api/classify", "fox.txt", foxText, map[string]string{"domain": "a/b"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.inv.Calls())
}

func TestIngest_UnknownJob(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/ingest/nope/status", "/api/ingest/nope/result"} {
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestClassify(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, upload(t, "/api/classify", "fox.md", foxText, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Format         string                  `json:"format"`
		Classification classify.Classification `json:"classification"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "markdown", body.Format)
	assert.Equal(t, classify.TypeComprehension, body.Classification.DocumentType)
	assert.InDelta(t, 0.8, body.Classification.Confidence, 1e-9)
}

func TestCorrections(t *testing.T) {
	ts := newTestServer(t)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/corrections", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return ts.do(t, req)
	}

	rec := post(`{"file_name": "fox.txt", "sample": "The fox lived...", "original_type": "TEXTBOOK", "corrected_type": "comprehension", "domain": "english"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "COMPREHENSION", decode(t, rec)["corrected_type"])

	examples, err := ts.store.Examples(context.Background(), "english", 5)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "TEXTBOOK", examples[0].OriginalType)

	rec = post(`{"sample": "x", "corrected_type": "novel"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`{"corrected_type": "WORKSHEET"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStructure_UnknownSource(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/sources/src-missing/structure", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStructure_EmptySource(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.UpsertSource(context.Background(), &store.Source{ID: "src-empty", DocumentType: "TEXTBOOK"}))

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/sources/src-empty/structure", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out pipeline.StructureOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "src-empty", out.SourceID)
	assert.Zero(t, out.Facts)
	assert.Equal(t, 1, out.Stats.NodesCreated)
	assert.Empty(t, ts.inv.Calls())
}

func TestLLMStats(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "test-model", body["model"])
	assert.Contains(t, body, "stats")
	assert.Contains(t, body, "recent_calls")

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/stats/llm?recent=0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decode(t, rec), "recent_calls")
}
