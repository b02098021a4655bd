// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jeranaias/rigrun-ollama/internal/config"
	"github.com/jeranaias/rigrun-ollama/internal/logging"
	"github.com/jeranaias/rigrun-ollama/pkg/ollama"
)

// =============================================================================
// HELPERS
// =============================================================================

type testApp struct {
	*App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newTestApp wires an App to an httptest server with buffered output and a
// private config file and embedding store.
func newTestApp(t *testing.T, handler http.Handler) *testApp {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.BaseURL = server.URL
	cfg.Store.Path = filepath.Join(dir, "embeddings.db")

	client, err := newClient(cfg, server.Client(), logging.Discard())
	require.NoError(t, err)

	ta := &testApp{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	ta.App = &App{
		Config:     cfg,
		ConfigPath: filepath.Join(dir, "config.toml"),
		Client:     client,
		Logger:     logging.Discard(),
		Stdin:      strings.NewReader(""),
		Stdout:     ta.stdout,
		Stderr:     ta.stderr,
	}
	return ta
}

// run parses argv and runs it against the test app.
func (ta *testApp) run(argv ...string) error {
	cmd, args := Parse(argv)
	ta.JSON = args.JSON
	ta.Quiet = args.Quiet
	return ta.Run(context.Background(), cmd, args)
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}

func ndjson(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

const chatReply = `{"model":"llama3.2","message":{"role":"assistant","content":"Hello"},"done":false}
{"model":"llama3.2","message":{"role":"assistant","content":" world"},"done":false}
{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":4,"eval_count":10,"eval_duration":2000000000}
`

// chatServer answers api/chat with chatReply and records each request.
func chatServer(t *testing.T, requests *[]ollama.ChatRequest) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ollama.ChatRequest
		decodeBody(t, r, &req)
		*requests = append(*requests, req)
		io.WriteString(w, chatReply)
	})
	return mux
}

// =============================================================================
// CHAT / GENERATE
// =============================================================================

func TestChat_StreamsReply(t *testing.T) {
	var requests []ollama.ChatRequest
	app := newTestApp(t, chatServer(t, &requests))

	require.NoError(t, app.run("chat", "--system", "be brief", "-m", "phi3", "hi", "there"))

	assert.Equal(t, "Hello world\n", app.stdout.String())
	assert.Contains(t, app.stderr.String(), "10 tokens")
	assert.Contains(t, app.stderr.String(), "5.0 tok/s")

	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, "phi3", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, ollama.NewSystemMessage("be brief"), req.Messages[0])
	assert.Equal(t, ollama.NewUserMessage("hi there"), req.Messages[1])
}

func TestChat_JSONEnvelope(t *testing.T) {
	var requests []ollama.ChatRequest
	app := newTestApp(t, chatServer(t, &requests))

	require.NoError(t, app.run("--json", "chat", "hi"))

	out := app.stdout.String()
	assert.True(t, gjson.Valid(out))
	assert.True(t, gjson.Get(out, "success").Bool())
	assert.Equal(t, "chat", gjson.Get(out, "command").String())
	assert.Equal(t, "Hello world", gjson.Get(out, "data.content").String())
	assert.Equal(t, "stop", gjson.Get(out, "data.done_reason").String())
	assert.EqualValues(t, 10, gjson.Get(out, "data.eval_tokens").Int())
	assert.Equal(t, "llama3.2", requests[0].Model, "config default model")
}

func TestChat_PromptFromStdin(t *testing.T) {
	var requests []ollama.ChatRequest
	app := newTestApp(t, chatServer(t, &requests))
	app.Stdin = strings.NewReader("  piped question\n")

	require.NoError(t, app.run("chat", "-q"))
	require.Len(t, requests, 1)
	assert.Equal(t, "piped question", requests[0].Messages[0].Content)
	assert.Empty(t, app.stderr.String(), "quiet suppresses stats")
}

func TestChat_NoPrompt(t *testing.T) {
	var requests []ollama.ChatRequest
	app := newTestApp(t, chatServer(t, &requests))

	err := app.run("chat")
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Empty(t, requests)
}

func TestChat_ServerErrorFrame(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, ndjson(
			`{"model":"m","message":{"role":"assistant","content":"par"},"done":false}`,
			`{"error":"model ran out of memory"}`,
		))
	})
	app := newTestApp(t, mux)

	err := app.run("chat", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model ran out of memory")
	assert.Equal(t, "par\n", app.stdout.String(), "partial reply is terminated with a newline")
	assert.Equal(t, ExitError, GetExitCode(err))
}

func TestChatSession_KeepsHistory(t *testing.T) {
	var requests []ollama.ChatRequest
	app := newTestApp(t, chatServer(t, &requests))
	_, args := Parse([]string{"chat", "--system", "sys"})
	s := app.newChatSession(args, nil)

	var out bytes.Buffer
	_, _, err := s.send(context.Background(), "first", &out)
	require.NoError(t, err)
	_, _, err = s.send(context.Background(), "second", nil)
	require.NoError(t, err)

	assert.Equal(t, "Hello world", out.String())
	require.Len(t, requests, 2)
	second := requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, "system", second[0].Role)
	assert.Equal(t, "first", second[1].Content)
	assert.Equal(t, ollama.NewAssistantMessage("Hello world"), second[2])
	assert.Equal(t, "second", second[3].Content)

	assert.Equal(t, 2, s.Turns)
	assert.Equal(t, 28, s.TotalTokens)
	assert.Len(t, s.Messages, 4, "system prompt is not part of the history")
}

func TestChatSession_FailedTurnRollsBack(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	})
	app := newTestApp(t, mux)
	_, args := Parse([]string{"chat"})
	s := app.newChatSession(args, nil)

	_, _, err := s.send(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.True(t, ollama.IsModelNotFound(err))
	assert.Empty(t, s.Messages)
	assert.Zero(t, s.Turns)
}

func TestChatSession_SlashCommands(t *testing.T) {
	s := &chatSession{Model: "llama3.2", Messages: []ollama.Message{ollama.NewUserMessage("hi")}}
	var out bytes.Buffer

	assert.True(t, s.handleSlashCommand("/model phi3", &out))
	assert.Equal(t, "phi3", s.Model)

	assert.True(t, s.handleSlashCommand("/system talk like a pirate", &out))
	assert.Equal(t, "talk like a pirate", s.System)

	out.Reset()
	assert.True(t, s.handleSlashCommand("/history", &out))
	assert.Contains(t, out.String(), "user:")

	assert.True(t, s.handleSlashCommand("/clear", &out))
	assert.Empty(t, s.Messages)
	assert.Equal(t, "talk like a pirate", s.System, "clear keeps the system prompt")

	assert.True(t, s.handleSlashCommand("/system off", &out))
	assert.Empty(t, s.System)

	assert.True(t, s.handleSlashCommand("/markdown", &out))
	assert.True(t, s.Markdown)

	out.Reset()
	assert.True(t, s.handleSlashCommand("/bogus", &out))
	assert.Contains(t, out.String(), "Unknown command /bogus")

	assert.False(t, s.handleSlashCommand("/quit", &out))
	assert.False(t, s.handleSlashCommand("/q", &out))
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions(NewArgParser(nil))
	require.NoError(t, err)
	assert.Nil(t, opts)

	opts, err = parseOptions(NewArgParser([]string{"--temperature", "0.2", "--seed", "7", "--num-ctx", "4096"}))
	require.NoError(t, err)
	assert.Equal(t, &ollama.Options{Temperature: ollama.Ptr(0.2), Seed: ollama.Ptr(7), NumCtx: 4096}, opts)

	opts, err = parseOptions(NewArgParser([]string{"--temperature", "0", "--seed", "0"}))
	require.NoError(t, err)
	require.NotNil(t, opts)
	require.NotNil(t, opts.Temperature)
	require.NotNil(t, opts.Seed)
	body, err := json.Marshal(ollama.ChatRequest{Model: "m", Options: opts})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"temperature":0`)
	assert.Contains(t, string(body), `"seed":0`)

	_, err = parseOptions(NewArgParser([]string{"--temperature", "hot"}))
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestGenerate(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		decodeBody(t, r, &got)
		io.WriteString(w, ndjson(
			`{"model":"m","response":"{\"a\":","done":false}`,
			`{"model":"m","response":"1}","done":false}`,
			`{"model":"m","response":"","done":true,"context":[1,2],"eval_count":2,"eval_duration":1000000000}`,
		))
	})
	app := newTestApp(t, mux)

	require.NoError(t, app.run("generate", "--format", "json", "--temperature=0.5", "give", "json"))
	assert.Equal(t, "{\"a\":1}\n", app.stdout.String())
	assert.Equal(t, "give json", got["prompt"])
	assert.Equal(t, "json", got["format"])
	assert.Equal(t, true, got["stream"])
	assert.Equal(t, map[string]any{"temperature": 0.5}, got["options"])

	app.stdout.Reset()
	require.NoError(t, app.run("--json", "gen", "again"))
	out := app.stdout.String()
	assert.Equal(t, `{"a":1}`, gjson.Get(out, "data.content").String())
	assert.Equal(t, "[1,2]", gjson.Get(out, "data.context|@ugly").Raw)
}

func TestParseFormat(t *testing.T) {
	f, err := parseFormat("json")
	require.NoError(t, err)
	assert.JSONEq(t, `"json"`, string(f))

	f, err = parseFormat(`{"type":"object"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object"}`, string(f))

	_, err = parseFormat("yaml")
	assert.Error(t, err)
	_, err = parseFormat("[1]")
	assert.Error(t, err)
}

// =============================================================================
// EMBED / SEARCH
// =============================================================================

// embedServer maps fixed texts to fixed 2-d vectors.
func embedServer(t *testing.T) http.Handler {
	vectors := map[string][]float32{
		"cats purr":   {1, 0},
		"stocks fell": {0, 1},
		"kittens":     {0.9, 0.1},
		"markets":     {0.1, 0.9},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req ollama.EmbedRequest
		decodeBody(t, r, &req)
		resp := ollama.EmbedResponse{Model: req.Model}
		for _, text := range req.Input.Texts() {
			resp.Embeddings = append(resp.Embeddings, vectors[text])
		}
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func TestEmbedStoreAndSearch(t *testing.T) {
	app := newTestApp(t, embedServer(t))

	require.NoError(t, app.run("embed", "--store", "cats purr", "stocks fell"))
	assert.Contains(t, app.stdout.String(), "2 dims")
	assert.Contains(t, app.stdout.String(), "stored")

	app.stdout.Reset()
	require.NoError(t, app.run("--json", "search", "--limit", "1", "kittens"))
	out := app.stdout.String()
	hits := gjson.Get(out, "data").Array()
	require.Len(t, hits, 1)
	assert.Equal(t, "cats purr", hits[0].Get("text").String())
	assert.Greater(t, hits[0].Get("score").Float(), 0.9)

	app.stdout.Reset()
	require.NoError(t, app.run("search", "markets"))
	lines := strings.Split(strings.TrimSpace(app.stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "stocks fell")
}

func TestEmbed_JSONAndStdin(t *testing.T) {
	app := newTestApp(t, embedServer(t))
	app.Stdin = strings.NewReader("cats purr\n\nstocks fell\n")

	require.NoError(t, app.run("--json", "embed", "-"))
	out := app.stdout.String()
	assert.Equal(t, "nomic-embed-text", gjson.Get(out, "data.model").String())
	assert.Equal(t, "[[1,0],[0,1]]", gjson.Get(out, "data.embeddings|@ugly").Raw)
	assert.False(t, gjson.Get(out, "data.stored_ids").Exists())

	_, err := os.Stat(app.Config.Store.Path)
	assert.True(t, os.IsNotExist(err), "store is only created with --store")
}

func TestSearch_EmptyStore(t *testing.T) {
	app := newTestApp(t, embedServer(t))
	require.NoError(t, app.run("search", "kittens"))
	assert.Empty(t, app.stdout.String())
	assert.Contains(t, app.stderr.String(), "No stored embeddings")
}

func TestEmbed_Usage(t *testing.T) {
	app := newTestApp(t, embedServer(t))
	var usageErr *UsageError
	assert.ErrorAs(t, app.run("embed"), &usageErr)
	assert.ErrorAs(t, app.run("search"), &usageErr)
	var vErr *ValidationError
	assert.ErrorAs(t, app.run("search", "--limit", "zero", "x"), &vErr)
}

// =============================================================================
// PULL
// =============================================================================

func TestPull_PlainProgress(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		decodeBody(t, r, &body)
		io.WriteString(w, ndjson(
			`{"status":"pulling manifest"}`,
			`{"status":"pulling d1","digest":"sha:d1","total":100,"completed":5}`,
			`{"status":"pulling d1","digest":"sha:d1","total":100,"completed":7}`,
			`{"status":"pulling d1","digest":"sha:d1","total":100,"completed":55}`,
			`{"status":"pulling d1","digest":"sha:d1","total":100,"completed":100}`,
			`{"status":"verifying sha256 digest"}`,
			`{"status":"success"}`,
		))
	})
	app := newTestApp(t, mux)

	require.NoError(t, app.run("pull", "--insecure", "llama3.2"))
	assert.Equal(t, "llama3.2", body["name"])
	assert.Equal(t, true, body["insecure"])

	assert.Equal(t, ndjson(
		"pulling manifest",
		"pulling d1 0%",
		"pulling d1 50%",
		"pulling d1 100%",
		"verifying sha256 digest",
		"success",
	), app.stderr.String())
	assert.Contains(t, app.stdout.String(), "pulled llama3.2")

	app.stdout.Reset()
	require.NoError(t, app.run("--json", "pull", "llama3.2"))
	out := app.stdout.String()
	assert.Equal(t, "success", gjson.Get(out, "data.status").String())
	assert.Equal(t, "sha:d1", gjson.Get(out, "data.digest").String())
	assert.EqualValues(t, 100, gjson.Get(out, "data.completed").Int())
}

func TestPull_Error(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, ndjson(
			`{"status":"pulling manifest"}`,
			`{"error":"pull model manifest: file does not exist"}`,
		))
	})
	app := newTestApp(t, mux)

	err := app.run("pull", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")
	assert.NotContains(t, app.stdout.String(), "pulled")
}

func TestPullModel_Update(t *testing.T) {
	canceled := false
	m := newPullModel("llama3.2", func() { canceled = true })
	total, completed := int64(200), int64(50)

	next, cmd := m.Update(pullUpdateMsg{Status: "pulling d1", Digest: "sha:d1", Total: &total, Completed: &completed})
	m = next.(pullModel)
	assert.NotNil(t, cmd, "progress animation starts")
	assert.Equal(t, "sha:d1", m.summary.Digest)
	view := m.View()
	assert.Contains(t, view, "llama3.2")
	assert.Contains(t, view, "pulling d1")
	assert.Contains(t, view, "50 B / 200 B")

	next, _ = m.Update(pullUpdateMsg{Status: "pulling manifest"})
	assert.NotContains(t, next.(pullModel).View(), "/ 200 B")

	next, cmd = m.Update(pullDoneMsg{summary: ollama.PullEvent{Status: "success"}})
	m = next.(pullModel)
	assert.True(t, m.done)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
	assert.False(t, canceled)
}

func TestPullModel_Abort(t *testing.T) {
	canceled := false
	m := newPullModel("llama3.2", func() { canceled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, next.(pullModel).aborted)
	assert.True(t, canceled)
	assert.NotNil(t, cmd)
}

func TestPullLine(t *testing.T) {
	total, completed := int64(1000), int64(999)
	assert.Equal(t, "pulling manifest", pullLine(ollama.PullEvent{Status: "pulling manifest"}))
	assert.Equal(t, "pulling d1 90%", pullLine(ollama.PullEvent{Status: "pulling d1", Total: &total, Completed: &completed}))
	assert.Equal(t, "success", pullLine(ollama.PullEvent{Status: "success", Total: &total, Completed: &total}))
}

// =============================================================================
// MODELS
// =============================================================================

func modelServer(t *testing.T, calls *[]string) http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		var raw map[string]any
		decodeBody(t, r, &raw)
		b, _ := json.Marshal(raw)
		*calls = append(*calls, r.Method+" "+r.URL.Path+" "+string(b))
	}
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"models":[
			{"name":"phi3:latest","size":2200000000,"digest":"sha256:aaaaaaaaaaaaaaaaaaaa","modified_at":"2024-05-01T10:00:00Z"},
			{"name":"llama3.2:latest","size":2019393189,"digest":"a80c4f17acd5","modified_at":"2024-05-02T10:00:00Z"}
		]}`)
	})
	mux.HandleFunc("POST /api/show", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		decodeBody(t, r, &req)
		if req["name"] != "llama3.2" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"model 'nope' not found"}`)
			return
		}
		io.WriteString(w, `{"license":"LLAMA 3.2 COMMUNITY LICENSE\nmore","modelfile":"FROM llama3.2\n","parameters":"stop   \"<|eot_id|>\"","template":"{{ .Prompt }}","details":{"family":"llama","parameter_size":"3.2B","quantization_level":"Q4_K_M","format":"gguf"}}`)
	})
	mux.HandleFunc("DELETE /api/delete", func(w http.ResponseWriter, r *http.Request) {
		record(r)
	})
	mux.HandleFunc("POST /api/copy", func(w http.ResponseWriter, r *http.Request) {
		record(r)
	})
	return mux
}

func TestList(t *testing.T) {
	var calls []string
	app := newTestApp(t, modelServer(t, &calls))

	require.NoError(t, app.run("list"))
	lines := strings.Split(strings.TrimSpace(app.stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.True(t, strings.HasPrefix(lines[1], "llama3.2:latest"), "sorted by name")
	assert.Contains(t, lines[1], "1.9 GB")
	assert.Contains(t, lines[2], "aaaaaaaaaaaa ")

	app.stdout.Reset()
	require.NoError(t, app.run("--json", "ls"))
	out := app.stdout.String()
	assert.Equal(t, "llama3.2:latest", gjson.Get(out, "data.0.name").String())
	assert.EqualValues(t, 2, gjson.Get(out, "data.#").Int())
}

func TestWriteModelTable_Truncates(t *testing.T) {
	models := []ollama.LocalModel{{Name: strings.Repeat("x", 60) + ":latest", Size: 512}}
	var out bytes.Buffer
	writeModelTable(&out, models, models[0].ModifiedAt, 60)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "...")
	assert.Contains(t, lines[1], "512 B")
	assert.True(t, strings.HasSuffix(lines[1], "-"), "zero time renders as -")
}

func TestShow(t *testing.T) {
	var calls []string
	app := newTestApp(t, modelServer(t, &calls))

	require.NoError(t, app.run("show", "llama3.2"))
	out := app.stdout.String()
	assert.Contains(t, out, "llama")
	assert.Contains(t, out, "Q4_K_M")
	assert.Contains(t, out, `stop "<|eot_id|>"`)
	assert.Contains(t, out, "LLAMA 3.2 COMMUNITY LICENSE")
	assert.NotContains(t, out, "more")

	app.stdout.Reset()
	require.NoError(t, app.run("show", "--modelfile", "llama3.2"))
	assert.Equal(t, "FROM llama3.2\n", app.stdout.String())

	err := app.run("show", "nope")
	require.Error(t, err)
	assert.True(t, ollama.IsModelNotFound(err))
	assert.Equal(t, ExitNotFound, GetExitCode(err))
}

func TestRemoveAndCopy(t *testing.T) {
	var calls []string
	app := newTestApp(t, modelServer(t, &calls))

	var usageErr *UsageError
	require.ErrorAs(t, app.run("rm", "old"), &usageErr, "stdin is not a terminal")
	assert.Empty(t, calls)

	require.NoError(t, app.run("rm", "-y", "old"))
	require.NoError(t, app.run("cp", "llama3.2", "mine"))
	assert.Equal(t, []string{
		`DELETE /api/delete {"name":"old"}`,
		`POST /api/copy {"destination":"mine","source":"llama3.2"}`,
	}, calls)
	assert.Equal(t, "deleted 'old'\ncopied 'llama3.2' to 'mine'\n", app.stdout.String())

	assert.ErrorAs(t, app.run("cp", "only-one"), &usageErr)
	assert.ErrorAs(t, app.run("rm"), &usageErr)
}

// =============================================================================
// STATUS / CONFIG / DISPATCH
// =============================================================================

func TestStatus(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.Handle("GET /api/tags", modelServer(t, &calls))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Ollama is running")
	})
	app := newTestApp(t, mux)

	require.NoError(t, app.run("status"))
	out := app.stdout.String()
	assert.Contains(t, out, "[OK]")
	assert.Contains(t, out, "2")
	assert.Contains(t, out, "(empty)")

	app.stdout.Reset()
	require.NoError(t, app.run("--json", "s"))
	assert.True(t, gjson.Get(app.stdout.String(), "data.reachable").Bool())
	assert.EqualValues(t, 2, gjson.Get(app.stdout.String(), "data.models").Int())
}

func TestStatus_Unreachable(t *testing.T) {
	app := newTestApp(t, http.NotFoundHandler())
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client, err := newClient(&config.Config{BaseURL: server.URL}, http.DefaultClient, logging.Discard())
	require.NoError(t, err)
	app.Client = client

	err = app.run("status")
	require.Error(t, err)
	assert.Equal(t, ExitNetwork, GetExitCode(err))
	assert.Contains(t, app.stdout.String(), "[FAIL]")
}

func TestConfigCommand(t *testing.T) {
	app := newTestApp(t, http.NotFoundHandler())

	require.NoError(t, app.run("config", "path"))
	assert.Equal(t, app.ConfigPath+"\n", app.stdout.String())

	app.stdout.Reset()
	require.NoError(t, app.run("config", "set", "default_model", "phi3"))
	require.NoError(t, app.run("config", "set", "timeout", "45s"))
	assert.Contains(t, app.stdout.String(), "default_model = phi3")

	saved, err := config.ReadFile(app.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "phi3", saved.DefaultModel)
	assert.Equal(t, "45s", saved.Timeout.String())

	app.stdout.Reset()
	require.NoError(t, app.run("config", "get", "timeout"))
	assert.Equal(t, "30s\n", app.stdout.String(), "get reports the loaded config")

	var vErr *ValidationError
	assert.ErrorAs(t, app.run("config", "get", "nope"), &vErr)

	var cfgErr *ConfigError
	assert.ErrorAs(t, app.run("config", "set", "log.level", "chatty"), &cfgErr)

	var usageErr *UsageError
	assert.ErrorAs(t, app.run("config", "frob"), &usageErr)

	app.stdout.Reset()
	require.NoError(t, app.run("config", "show"))
	assert.Contains(t, app.stdout.String(), `default_model = "llama3.2"`)

	app.stdout.Reset()
	require.NoError(t, app.run("--json", "config", "keys"))
	assert.Contains(t, gjson.Get(app.stdout.String(), "data").String(), "store.path")

	assert.ErrorAs(t, app.run("--json", "config", "reset"), &usageErr)
	require.NoError(t, app.run("config", "reset", "--yes"))
	saved, err = config.ReadFile(app.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", saved.DefaultModel)
}

func TestConfirm(t *testing.T) {
	app := newTestApp(t, http.NotFoundHandler())
	assert.NoError(t, app.confirm("frob", "", NewArgParser([]string{"--yes"}, "yes")))

	var usageErr *UsageError
	assert.ErrorAs(t, app.confirm("frob", "", NewArgParser(nil)), &usageErr)

	for answer, want := range map[string]bool{"y": true, " YES ": true, "n": false, "": false, "sure": false} {
		assert.Equal(t, want, isYes(answer), answer)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	app := newTestApp(t, http.NotFoundHandler())
	err := app.run("frobnicate")
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Contains(t, err.Error(), "frobnicate")
	assert.NotContains(t, err.Error(), "did you mean")

	err = app.run("lsit")
	require.ErrorAs(t, err, &usageErr)
	assert.Contains(t, err.Error(), `did you mean "list"?`)
}

func TestSuggestCommand(t *testing.T) {
	tests := map[string]string{
		"pul":      "pull",
		"serch":    "search",
		"statsu":   "status",
		"CHTA":     "chat",
		"list":     "",
		"x":        "",
		"kubectl":  "",
		"generaet": "generate",
	}
	for input, want := range tests {
		assert.Equal(t, want, SuggestCommand(input), input)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{180 * time.Millisecond, "180ms"},
		{2400 * time.Millisecond, "2.4s"},
		{3*time.Minute + 12*time.Second, "3m12s"},
		{time.Hour + 5*time.Minute, "1h5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestReportError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := &ollama.ClientError{Type: ollama.ErrTypeTransport, Message: "list models request failed"}

	code := ReportError(&stdout, &stderr, Args{Name: "list", JSON: true}, err)
	assert.Equal(t, ExitNetwork, code)
	assert.Empty(t, stderr.String())
	assert.False(t, gjson.Get(stdout.String(), "success").Bool())
	assert.Equal(t, "list models request failed", gjson.Get(stdout.String(), "error").String())
	assert.Equal(t, "list", gjson.Get(stdout.String(), "command").String())

	stdout.Reset()
	code = ReportError(&stdout, &stderr, Args{Name: "list"}, err)
	assert.Equal(t, ExitNetwork, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "ollama serve")
}

func TestVersion(t *testing.T) {
	app := newTestApp(t, http.NotFoundHandler())
	require.NoError(t, app.run("version"))
	assert.Contains(t, app.stdout.String(), "ollamactl version "+Version)

	app.stdout.Reset()
	require.NoError(t, app.run("--json", "version"))
	assert.Equal(t, Version, gjson.Get(app.stdout.String(), "data.version").String())
}
