package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collab-code-share/backend/internal/db"
	"github.com/collab-code-share/backend/internal/executor"
	"github.com/collab-code-share/backend/internal/model"
	"github.com/collab-code-share/backend/internal/repository"
	"github.com/collab-code-share/backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	router       *gin.Engine
	sessions     *store.Store
	orchestrator *executor.Orchestrator
}

// newAPIFixture wires the control API against an in-memory archive and
// the given execution client.
func newAPIFixture(t *testing.T, client *executor.Judge0Client) *apiFixture {
	t.Helper()

	database, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	sessions := store.New(store.DefaultTTL)
	t.Cleanup(sessions.Close)

	runRepo := repository.NewRunRepository(database)
	orchestrator := executor.New(client, nil, runRepo)

	router := gin.New()
	api := router.Group("/api")
	NewSessionHandler(sessions, runRepo).RegisterRoutes(api)
	NewExecuteHandler(orchestrator).RegisterRoutes(api)

	return &apiFixture{router: router, sessions: sessions, orchestrator: orchestrator}
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// fakeJudge0 is a minimal execution backend: one token, a fixed
// terminal submission.
func fakeJudge0(t *testing.T, sub map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "t1"})
	})
	mux.HandleFunc("GET /submissions/t1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sub)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateSessionWithoutBody(t *testing.T) {
	f := newAPIFixture(t, executor.NewJudge0Client("", ""))

	w := f.do(http.MethodPost, "/api/session", "")

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.ID, 6)
}

func TestCreateSessionSeedsSnapshot(t *testing.T) {
	f := newAPIFixture(t, executor.NewJudge0Client("", ""))

	w := f.do(http.MethodPost, "/api/session", `{"language":"python","code":"pass"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = f.do(http.MethodGet, "/api/session/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot struct {
		ID       string `json:"id"`
		Language string `json:"language"`
		Code     string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, created.ID, snapshot.ID)
	assert.Equal(t, "python", snapshot.Language)
	assert.Equal(t, "pass", snapshot.Code)
}

func TestCreateSessionRejectsMalformedBody(t *testing.T) {
	f := newAPIFixture(t, executor.NewJudge0Client("", ""))

	w := f.do(http.MethodPost, "/api/session", `{"language":`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Error.Code)
}

func TestGetUnknownSession(t *testing.T) {
	f := newAPIFixture(t, executor.NewJudge0Client("", ""))

	w := f.do(http.MethodGet, "/api/session/zzzzzz", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w).Error.Code)
}

func TestListRunsForFreshSession(t *testing.T) {
	f := newAPIFixture(t, executor.NewJudge0Client("", ""))

	session, err := f.sessions.Create(model.CreateSessionRequest{})
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/api/session/"+session.ID+"/runs", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestListRunsUnknownSession(t *testing.T) {
	f := newAPIFixture(t, executor.NewJudge0Client("", ""))

	w := f.do(http.MethodGet, "/api/session/zzzzzz/runs", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w).Error.Code)
}

func TestExecuteWithoutProvider(t *testing.T) {
	f := newAPIFixture(t, executor.NewJudge0Client("", ""))

	w := f.do(http.MethodPost, "/api/execute", `{"code":"print(1)"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "PROVIDER_MISCONFIGURED", decodeError(t, w).Error.Code)
}

func TestExecuteRejectsMalformedBody(t *testing.T) {
	f := newAPIFixture(t, executor.NewJudge0Client("", ""))

	w := f.do(http.MethodPost, "/api/execute", `{"code":`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Error.Code)
}

func TestExecuteReturnsResultAndArchives(t *testing.T) {
	backend := fakeJudge0(t, map[string]any{
		"stdout": "hi\n",
		"status": map[string]any{"id": 3, "description": "Accepted"},
	})
	f := newAPIFixture(t, executor.NewJudge0Client(backend.URL, ""))

	session, err := f.sessions.Create(model.CreateSessionRequest{Language: "python"})
	require.NoError(t, err)

	body := fmt.Sprintf(`{"language":"python","code":"print('hi')","sessionId":%q}`, session.ID)
	w := f.do(http.MethodPost, "/api/execute", body)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Language string                `json:"language"`
		Result   model.ExecutionResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "python", resp.Language)
	assert.Equal(t, "hi\n", resp.Result.Stdout)
	assert.Equal(t, 3, resp.Result.Status.ID)

	w = f.do(http.MethodGet, "/api/session/"+session.ID+"/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "hi\n", runs[0].Stdout)
}

func TestExecuteDefaultsLanguage(t *testing.T) {
	backend := fakeJudge0(t, map[string]any{
		"status": map[string]any{"id": 3, "description": "Accepted"},
	})
	f := newAPIFixture(t, executor.NewJudge0Client(backend.URL, ""))

	w := f.do(http.MethodPost, "/api/execute", `{"code":"console.log(1)"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Language string `json:"language"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.DefaultLanguage, resp.Language)
}

// roomSink records execution fanouts.
type roomSink struct {
	mu      sync.Mutex
	results []*model.ExecutionResult
}

func (r *roomSink) BroadcastExecutionResult(sessionID, language string, result *model.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *roomSink) last() *model.ExecutionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return nil
	}
	return r.results[len(r.results)-1]
}

// A requester dropping its connection mid-poll does not cancel the
// run: the poll loop finishes and the room receives the real outcome,
// not a rendered cancellation failure.
func TestExecuteSurvivesRequesterDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	statuses := []int{1, 2, 3}
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "t1"})
	})
	mux.HandleFunc("GET /submissions/t1", func(w http.ResponseWriter, r *http.Request) {
		idx := polls
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		polls++
		if polls == 1 {
			// Drop the requester as soon as the first poll is served.
			cancel()
		}

		resp := map[string]any{
			"status": map[string]any{"id": statuses[idx], "description": "Processing"},
		}
		if statuses[idx] >= 3 {
			resp["stdout"] = "x\n"
			resp["status"] = map[string]any{"id": 3, "description": "Accepted"}
		}
		json.NewEncoder(w).Encode(resp)
	})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	sink := &roomSink{}
	orchestrator := executor.New(executor.NewJudge0Client(backend.URL, ""), sink, nil)
	orchestrator.SetPollBudget(5*time.Millisecond, 10)

	router := gin.New()
	NewExecuteHandler(orchestrator).RegisterRoutes(router.Group("/api"))

	body := `{"language":"python","code":"print('x')","sessionId":"s1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, polls, len(statuses))

	last := sink.last()
	require.NotNil(t, last)
	assert.Equal(t, "x\n", last.Stdout)
	assert.Equal(t, 3, last.Status.ID)
	assert.Empty(t, last.Stderr)
}

func TestExecuteTimeoutSurfacesAsServerError(t *testing.T) {
	backend := fakeJudge0(t, map[string]any{
		"status": map[string]any{"id": 2, "description": "Processing"},
	})
	f := newAPIFixture(t, executor.NewJudge0Client(backend.URL, ""))
	f.orchestrator.SetPollBudget(time.Millisecond, 3)

	w := f.do(http.MethodPost, "/api/execute", `{"code":"while True: pass","language":"python"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "EXECUTION_TIMEOUT", decodeError(t, w).Error.Code)
}
