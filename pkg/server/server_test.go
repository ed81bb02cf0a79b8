package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/events"
	"github.com/harrisonrobin/taskmind/pkg/extract"
	"github.com/harrisonrobin/taskmind/pkg/kv"
	"github.com/harrisonrobin/taskmind/pkg/model"
	"github.com/harrisonrobin/taskmind/pkg/pipeline"
	"github.com/harrisonrobin/taskmind/pkg/settings"
	"github.com/harrisonrobin/taskmind/pkg/source"
	"github.com/harrisonrobin/taskmind/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExtractor struct {
	tasks []model.Task
	err   error
}

func (e *stubExtractor) Extract(_ context.Context, _ string, policy model.Policy) ([]model.Task, error) {
	if policy.Credential == "" {
		return nil, extract.ErrMissingCredential
	}
	return e.tasks, e.err
}

type env struct {
	ts        *httptest.Server
	syncer    *pipeline.Syncer
	extractor *stubExtractor
}

func newEnv(t *testing.T, secret string, fetchers ...source.Fetcher) *env {
	t.Helper()
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	bus := events.NewBus(16)

	repo := settings.NewRepo(backend)
	require.NoError(t, repo.Save(ctx, model.Settings{GeminiAPIKey: "secret-key-1234", AutoSave: true}))

	st := store.New(backend, bus)
	require.NoError(t, st.Load(ctx))

	ex := &stubExtractor{}
	syncer := &pipeline.Syncer{
		Provider: auth.StaticProvider{AccessToken: "tok"},
		Fetchers: fetchers,
		Engine:   ex,
		Store:    st,
		Settings: repo,
		Bus:      bus,
	}
	ts := httptest.NewServer(New(syncer, bus, secret).Handler())
	t.Cleanup(ts.Close)
	return &env{ts: ts, syncer: syncer, extractor: ex}
}

func (e *env) do(t *testing.T, method, path, body string, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if buf.Len() > 0 {
		_ = json.Unmarshal(buf.Bytes(), &out)
	}
	return resp, out
}

type staticFetcher struct {
	label string
	text  string
}

func (f staticFetcher) Label() string { return f.label }

func (f staticFetcher) Fetch(context.Context, auth.Credential) (source.Blob, bool) {
	return source.Blob{Text: f.text, Items: 1}, f.text != ""
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, "")
	resp, body := e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestSyncEndpoint(t *testing.T) {
	e := newEnv(t, "", staticFetcher{label: source.LabelGmail, text: "Subject: report"})
	e.extractor.tasks = []model.Task{{ID: "1", Title: "Send report", Priority: model.PriorityHigh, SourceType: model.SourceGmail}}

	resp, body := e.do(t, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["total"])

	resp, body = e.do(t, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tasks, ok := body["tasks"].([]any)
	require.True(t, ok)
	assert.Len(t, tasks, 1)
}

func TestSyncNoContent(t *testing.T) {
	e := newEnv(t, "", staticFetcher{label: source.LabelGmail})
	resp, body := e.do(t, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no_content", body["status"])
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t, "", staticFetcher{label: source.LabelGmail, text: "x"})

	e.extractor.err = extract.ErrExtractionFailed
	resp, body := e.do(t, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "extraction_failed", body["error"])

	require.NoError(t, e.syncer.Settings.Save(context.Background(), model.Settings{}))
	resp, body = e.do(t, http.MethodPost, "/api/analyze", `{"text":"call Sam"}`)
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, "missing_credential", body["error"])

	resp, _ = e.do(t, http.MethodPost, "/api/analyze", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToggleAndClear(t *testing.T) {
	e := newEnv(t, "")
	_, err := e.syncer.Store.Apply(context.Background(), []model.Task{{ID: "t1", Title: "A"}}, store.ModeReplace)
	require.NoError(t, err)

	resp, body := e.do(t, http.MethodPost, "/api/tasks/t1/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["isCompleted"])

	resp, body = e.do(t, http.MethodPost, "/api/tasks/nope/toggle", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])

	resp, _ = e.do(t, http.MethodDelete, "/api/tasks", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, e.syncer.Store.Tasks())
}

func TestSettingsMaskAndPreserveKey(t *testing.T) {
	e := newEnv(t, "")

	resp, body := e.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	masked := body["geminiApiKey"].(string)
	assert.Equal(t, "***********1234", masked)

	payload := `{"geminiApiKey":"` + masked + `","customInstructions":"ignore newsletters","googleDriveConnected":true,"autoSave":true}`
	resp, _ = e.do(t, http.MethodPut, "/api/settings", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	current := e.syncer.Settings.Current()
	assert.Equal(t, "secret-key-1234", current.GeminiAPIKey)
	assert.Equal(t, "ignore newsletters", current.CustomInstructions)
	assert.True(t, current.BackupEnabled())
}

func sign(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "cli", "exp": exp.Unix()})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTRequiredWhenConfigured(t *testing.T) {
	e := newEnv(t, "hmac")

	resp, _ := e.do(t, http.MethodGet, "/api/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/tasks", "", "Authorization", "Bearer "+sign(t, "other", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/tasks", "", "Authorization", "Bearer "+sign(t, "hmac", time.Now().Add(-time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/tasks", "", "Authorization", "Bearer "+sign(t, "hmac", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	e := newEnv(t, "hmac")
	_, err := e.syncer.Store.Apply(context.Background(), []model.Task{{ID: "t1", Title: "A"}}, store.ModeReplace)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/api/events?token=" + sign(t, "hmac", time.Now().Add(time.Hour))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	_, err = e.syncer.Store.Toggle(context.Background(), "t1")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt events.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, events.TaskToggled, evt.Type)
	assert.Equal(t, "t1", evt.Data["id"])
}
