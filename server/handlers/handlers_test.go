package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teilomillet/reprompt/rules"
	"github.com/teilomillet/reprompt/server/middleware"
	"github.com/teilomillet/reprompt/server/mocks"
	"github.com/teilomillet/reprompt/sonar"
	"github.com/teilomillet/reprompt/transform"
)

const structured = "<context>c</context>\n<instruction>i</instruction>"

type fixture struct {
	handlers  *Handlers
	completer *mocks.MockCompleter
	root      string
	store     *rules.Store
}

func newFixture(t *testing.T, completer *mocks.MockCompleter) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "team.rpmt.md"), []byte("Use tabs."), 0644))

	logger := zaptest.NewLogger(t)
	store := rules.NewStore(root, logger, nil)
	store.Reload()

	orch := transform.NewOrchestrator(completer, transform.WithLogger(logger), transform.WithWorkspaceRoot(root))
	h := New(orch, store, WithWorkspace(root, true), WithLogger(logger), WithVersion("test"))
	return &fixture{handlers: h, completer: completer, root: root, store: store}
}

func post(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	middleware.RequestID(handler).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestTransform(t *testing.T) {
	f := newFixture(t, mocks.NewStaticCompleter(structured))

	rec := post(t, f.handlers.Transform, `{"prompt": "write a cli", "document": "notes.md"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, structured, body["text"])
	assert.Equal(t, "team.rpmt.md", body["rules_source"])
	assert.Contains(t, body["stack_block"], "Detected Go project (go.mod present).")
	assert.Contains(t, body["summary"], "Prompt transformed successfully!")
	assert.Len(t, body["regions"], 2)

	req := f.completer.LastRequest()
	require.NotNil(t, req)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "Use tabs.")
	assert.True(t, strings.HasPrefix(req.Messages[1].Content, "write a cli"))
}

func TestTransformStackOptOut(t *testing.T) {
	f := newFixture(t, mocks.NewStaticCompleter(structured))

	rec := post(t, f.handlers.Transform, `{"prompt": "write a cli", "infer_stack": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "write a cli", f.completer.LastRequest().Messages[1].Content)
}

func TestTransformErrors(t *testing.T) {
	tests := []struct {
		name       string
		completer  *mocks.MockCompleter
		body       string
		wantStatus int
		wantType   string
		wantMsg    string
	}{
		{
			name:       "blank prompt",
			completer:  mocks.NewStaticCompleter(structured),
			body:       `{"prompt": "   "}`,
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
			wantMsg:    transform.MsgNoText,
		},
		{
			name:       "missing prompt",
			completer:  mocks.NewStaticCompleter(structured),
			body:       `{}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
		{
			name:       "empty completion",
			completer:  mocks.NewStaticCompleter("   "),
			body:       `{"prompt": "x"}`,
			wantStatus: http.StatusBadGateway,
			wantType:   "empty_result",
		},
		{
			name: "api error keeps its body",
			completer: mocks.NewMockCompleter(func(context.Context, *sonar.ChatRequest) (*sonar.ChatResponse, error) {
				return nil, &sonar.APIError{StatusCode: 400, Body: "Invalid model"}
			}),
			body:       `{"prompt": "x"}`,
			wantStatus: http.StatusBadGateway,
			wantType:   "provider_error",
			wantMsg:    "Invalid model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.completer)
			rec := post(t, f.handlers.Transform, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.NotEmpty(t, body["request_id"])
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body["message"])
			}
		})
	}
}

func TestTransformBusyDocument(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	completer := mocks.NewMockCompleter(func(ctx context.Context, _ *sonar.ChatRequest) (*sonar.ChatResponse, error) {
		close(started)
		<-release
		return mocks.Reply(structured), nil
	})
	f := newFixture(t, completer)

	done := make(chan int)
	go func() {
		done <- post(t, f.handlers.Transform, `{"prompt": "first", "document": "a.md"}`).Code
	}()
	<-started

	rec := post(t, f.handlers.Transform, `{"prompt": "second", "document": "a.md"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "busy_error", decodeBody(t, rec)["type"])

	close(release)
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("first transformation did not finish")
	}
}

func TestExamples(t *testing.T) {
	f := newFixture(t, mocks.NewStaticCompleter("1. first\n2. second"))

	doc := "<instruction>Summarise logs</instruction>\n<format>list</format>"
	payload, _ := json.Marshal(map[string]interface{}{"text": doc, "count": 2})
	rec := post(t, f.handlers.Examples, string(payload))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Summarise logs", body["instruction"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t,
		"<instruction>Summarise logs</instruction>\n<examples>\n1. first\n2. second\n</examples>\n\n<format>list</format>",
		body["text"])
	assert.Contains(t, f.completer.LastRequest().Messages[0].Content, "Summarise logs")
}

func TestExamplesCountOutOfRange(t *testing.T) {
	f := newFixture(t, mocks.NewStaticCompleter("x"))
	rec := post(t, f.handlers.Examples, `{"text": "do it", "count": 42}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, f.completer.Requests())
}

func TestRun(t *testing.T) {
	completer := mocks.NewMockCompleter(func(context.Context, *sonar.ChatRequest) (*sonar.ChatResponse, error) {
		resp := mocks.Reply("Paris")
		resp.Citations = []string{"https://example.com/a"}
		return resp, nil
	})
	f := newFixture(t, completer)

	rec := post(t, f.handlers.Run, `{"prompt": "capital of France?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Paris", body["content"])
	display := body["display"].(string)
	assert.True(t, strings.HasPrefix(display, "Paris\n\nsonar · "))
	assert.Contains(t, display, "1 Sources\n[1] https://example.com/a")

	req := completer.LastRequest()
	require.Len(t, req.Messages, 1)
	assert.Equal(t, sonar.RoleUser, req.Messages[0].Role)
}

func TestScore(t *testing.T) {
	f := newFixture(t, mocks.NewStaticCompleter(""))

	rec := post(t, f.handlers.Score, `{"text": "<instruction>short</instruction>"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["max"])
	assert.Equal(t, true, body["low"])
	assert.Contains(t, body["summary"], "Prompt Score: ")

	rec = post(t, f.handlers.Score, `{"text": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No prompt found to score.", decodeBody(t, rec)["message"])
	assert.Empty(t, f.completer.Requests())
}

func TestWorkspaceEndpoints(t *testing.T) {
	f := newFixture(t, mocks.NewStaticCompleter(""))

	t.Run("stack", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handlers.Stack(rec, httptest.NewRequest(http.MethodGet, "/v1/stack", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, []interface{}{"Detected Go project (go.mod present)."}, body["lines"])
		assert.Contains(t, body["block"], "[Project Stack Detected]")
	})

	t.Run("rules and reload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handlers.Rules(rec, httptest.NewRequest(http.MethodGet, "/v1/rules", nil))
		body := decodeBody(t, rec)
		assert.Equal(t, "found", body["status"])
		assert.Equal(t, "Use tabs.", body["rules"])

		require.NoError(t, os.WriteFile(filepath.Join(f.root, "team.rpmt.md"), []byte("Use spaces."), 0644))
		rec = post(t, f.handlers.ReloadRules, ``)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Use spaces.", decodeBody(t, rec)["rules"])
		assert.Equal(t, "Use spaces.", f.store.Snapshot().Text())
	})

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handlers.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		body := decodeBody(t, rec)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "test", body["version"])
		assert.Equal(t, "found", body["rules"])
	})
}

func TestNoRulesSource(t *testing.T) {
	h := New(transform.NewOrchestrator(mocks.NewStaticCompleter("")), nil)

	rec := httptest.NewRecorder()
	h.Rules(rec, httptest.NewRequest(http.MethodGet, "/v1/rules", nil))
	assert.Equal(t, "not_found", decodeBody(t, rec)["status"])
}
