package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/reprompt/tags"
	"github.com/teilomillet/reprompt/transform"
)

// fakeAPI answers every chat completion with content and records requests.
type fakeAPI struct {
	mu       sync.Mutex
	content  string
	requests []map[string]interface{}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(data, &body)

	f.mu.Lock()
	f.requests = append(f.requests, body)
	content := f.content
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":        "cmpl-1",
		"model":     "sonar",
		"citations": []string{"https://example.com"},
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

// lastUserContent returns the content of the last message of the last request.
func (f *fakeAPI) lastUserContent(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	msgs := f.requests[len(f.requests)-1]["messages"].([]interface{})
	return msgs[len(msgs)-1].(map[string]interface{})["content"].(string)
}

func (f *fakeAPI) systemContent(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	msgs := f.requests[len(f.requests)-1]["messages"].([]interface{})
	return msgs[0].(map[string]interface{})["content"].(string)
}

type env struct {
	api       *fakeAPI
	workspace string
	config    string
}

func newEnv(t *testing.T, content, extraYAML string) *env {
	t.Helper()
	api := &fakeAPI{content: content}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	workspace := filepath.Join(dir, "ws")
	require.NoError(t, os.Mkdir(workspace, 0755))

	cfg := fmt.Sprintf(`
sonar:
    api_key: test-key
    base_url: %s
logging:
    level: error
workspace:
    root: %s
%s`, srv.URL, workspace, extraYAML)
	cfgPath := filepath.Join(dir, "reprompt.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	return &env{api: api, workspace: workspace, config: cfgPath}
}

func (e *env) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.workspace, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the CLI with args and returns stdout, stderr and the error.
func (e *env) execute(stdin string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out, &errOut)
	root := newRootCmd(a)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

const structured = "<context>A CLI</context>\n<instruction>Parse flags</instruction>"

func TestTransformCommand(t *testing.T) {
	e := newEnv(t, structured, "transform:\n    progress_theme: tech\n")
	e.write(t, "go.mod", "module example\n")
	e.write(t, "team.rpmt.md", "Prefer the standard flag package.")
	file := e.write(t, "task.md", "write a cli")

	stdout, stderr, err := e.execute("", "transform", file)
	require.NoError(t, err)

	assert.Equal(t, structured+"\n", stdout)
	assert.Contains(t, stderr, transform.Message(transform.ThemeTech, transform.StepSending))
	assert.Contains(t, stderr, "Prompt transformed successfully! Expanded by")

	assert.True(t, strings.HasPrefix(e.api.lastUserContent(t), "write a cli\n\n[Project Stack Detected]"))
	assert.Contains(t, e.api.systemContent(t), "Prefer the standard flag package.")

	// The file is untouched without --write
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "write a cli", string(data))
}

func TestTransformCommandWrite(t *testing.T) {
	e := newEnv(t, structured, "")
	file := e.write(t, "task.prompt.md", "write a cli")

	stdout, _, err := e.execute("", "transform", "--write", "--no-stack", file)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "write a cli", e.api.lastUserContent(t))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, structured, string(data))
}

func TestTransformCommandRejectsOtherFiles(t *testing.T) {
	e := newEnv(t, structured, "")
	file := e.write(t, "main.go", "package main")

	_, _, err := e.execute("", "transform", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), tags.NotPromptFileMessage)

	_, _, err = e.execute("", "transform", "--force", file)
	assert.NoError(t, err)
}

func TestTransformCommandStdin(t *testing.T) {
	e := newEnv(t, structured, "")

	stdout, _, err := e.execute("terse prompt", "transform", "--no-stack", "-")
	require.NoError(t, err)
	assert.Equal(t, structured+"\n", stdout)
	assert.Equal(t, "terse prompt", e.api.lastUserContent(t))
}

func TestTransformCommandEmptyResult(t *testing.T) {
	e := newEnv(t, "  ", "")
	file := e.write(t, "task.md", "write a cli")

	stdout, _, err := e.execute("", "transform", "--write", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transform returned no content")
	assert.Empty(t, stdout)

	data, _ := os.ReadFile(file)
	assert.Equal(t, "write a cli", string(data))
}

func TestMissingAPIKey(t *testing.T) {
	e := newEnv(t, structured, "")
	cfg, err := os.ReadFile(e.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.config, bytes.Replace(cfg, []byte("test-key"), []byte(`""`), 1), 0644))
	file := e.write(t, "task.md", "write a cli")

	_, _, err = e.execute("", "transform", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sonar.api_key")
	assert.Empty(t, e.api.requests)
}

func TestExamplesCommand(t *testing.T) {
	e := newEnv(t, "1. first\n2. second", "")
	file := e.write(t, "task.md", "<instruction>Summarise logs</instruction>")

	_, stderr, err := e.execute("", "examples", "--count", "2", "--write", file)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Generated 2 examples")
	assert.Contains(t, e.api.lastUserContent(t), "generate 2 diverse")
	assert.Contains(t, e.api.lastUserContent(t), `"Summarise logs"`)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "<instruction>Summarise logs</instruction>\n<examples>\n1. first\n2. second\n</examples>\n", string(data))
}

func TestExamplesCommandAsksForCount(t *testing.T) {
	e := newEnv(t, "examples", "examples:\n    ask_each_time: true\n")
	file := e.write(t, "task.md", "<instruction>Summarise logs</instruction>")

	_, stderr, err := e.execute("0\n4\n", "examples", file)
	require.NoError(t, err)
	assert.Contains(t, stderr, "How many examples to generate?")
	assert.Contains(t, stderr, transform.MsgBadCount)
	assert.Contains(t, e.api.lastUserContent(t), "generate 4 diverse")
}

func TestRunCommand(t *testing.T) {
	e := newEnv(t, "Paris", "")
	file := e.write(t, "question.md", "capital of France?")

	stdout, _, err := e.execute("", "run", file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "Paris\n\nsonar · "))
	assert.Contains(t, stdout, "1 Sources\n[1] https://example.com")
}

func TestScoreCommand(t *testing.T) {
	e := newEnv(t, "", "")
	file := e.write(t, "task.md", structured)

	stdout, _, err := e.execute("", "score", file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "Prompt Score: "))
	assert.Empty(t, e.api.requests)

	empty := e.write(t, "empty.md", "  \n")
	_, _, err = e.execute("", "score", empty)
	assert.EqualError(t, err, tags.ErrNoPrompt)
}

func TestWorkspaceCommands(t *testing.T) {
	e := newEnv(t, "", "")
	e.write(t, "go.mod", "module example\n")

	stdout, _, err := e.execute("", "detect")
	require.NoError(t, err)
	assert.Equal(t, "Detected Go project (go.mod present).\n", stdout)

	stdout, _, err = e.execute("", "rules", "show")
	require.NoError(t, err)
	assert.Equal(t, "No house rules found.\n", stdout)

	e.write(t, "team.rpmt.yaml", "tabs: true\n")
	stdout, _, err = e.execute("", "rules", "reload")
	require.NoError(t, err)
	assert.Equal(t, "House rules from team.rpmt.yaml:\n• tabs: true\n", stdout)
}

func TestValidateAndVersion(t *testing.T) {
	e := newEnv(t, "", "")

	stdout, _, err := e.execute("", "validate")
	require.NoError(t, err)
	assert.Equal(t, "Configuration is valid\n", stdout)

	stdout, _, err = e.execute("", "version")
	require.NoError(t, err)
	assert.Equal(t, "reprompt "+Version+"\n", stdout)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sonar:\n    search_context_size: huge\n"), 0644))
	var out bytes.Buffer
	root := newRootCmd(newApp(strings.NewReader(""), &out, &out))
	root.SetArgs([]string{"--config", bad, "validate"})
	assert.ErrorContains(t, root.Execute(), "invalid search context size")
}
