package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/effective-security/toolagent/internal/cli"
	"github.com/effective-security/toolagent/mcp/toolhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const completion = `{
	"id": "chatcmpl-%d",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gemma-3-4b-it",
	"choices": [{"index": 0, "finish_reason": "%s", "message": %s}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

// fakeModel calls get_temperature for Hanoi, then answers with the result.
// Summarization requests, sent without tools, get empty content.
type fakeModel struct {
	lock     sync.Mutex
	requests []string
}

func (m *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	m.lock.Lock()
	m.requests = append(m.requests, string(body))
	n := len(m.requests)
	m.lock.Unlock()

	var reply string
	switch {
	case !gjson.Get(string(body), "tools").Exists():
		reply = fmt.Sprintf(completion, n, "stop", `{"role": "assistant", "content": ""}`)
	case gjson.Get(string(body), `messages.#(role=="tool")`).Exists():
		reply = fmt.Sprintf(completion, n, "stop", `{"role": "assistant", "content": "It is 30 degrees in Hanoi"}`)
	default:
		reply = fmt.Sprintf(completion, n, "tool_calls", `{"role": "assistant", "content": null, "tool_calls": [
			{"id": "call_1", "type": "function", "function": {"name": "get_temperature", "arguments": "{\"location\":\"Hanoi\"}"}}
		]}`)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(reply))
}

func startToolHost(t *testing.T) string {
	s, err := toolhost.NewServer("toolagent", "1.0.0")
	require.NoError(t, err)

	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	handler = s.SSEHandler(ts.URL)
	return ts.URL + "/sse"
}

func writeConfig(t *testing.T, serverURL, modelURL string) string {
	cfg := fmt.Sprintf(`client:
  server_url: %s
  max_iterations: 3
llm:
  providers:
    - name: test
      default_model: gemma-3-4b-it
      open_ai:
        base_url: %s/v1
        max_retries: 0
log:
  level: ERROR
`, serverURL, modelURL)

	file := filepath.Join(t.TempDir(), "toolagent.yaml")
	require.NoError(t, os.WriteFile(file, []byte(cfg), 0o600))
	return file
}

func execute(t *testing.T, in string, args ...string) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := cli.NewRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestChat(t *testing.T) {
	model := &fakeModel{}
	ts := httptest.NewServer(model)
	defer ts.Close()

	serverURL := startToolHost(t)
	cfg := writeConfig(t, serverURL, ts.URL)

	out, err := execute(t, "What is the temperature in Hanoi?\nquit\n", "chat", "--config", cfg)
	require.NoError(t, err)

	assert.Contains(t, out, "Connected to SSE MCP Server at "+serverURL+". Available tools: [add subtract get_temperature noop]")
	assert.Contains(t, out, "Calling tool: get_temperature")
	assert.Contains(t, out, "Tool result: 30\n")
	assert.Contains(t, out, "\nIt is 30 degrees in Hanoi\n")
	assert.Contains(t, out, "MCP Client Closed!")

	// tool completion, answer completion, summarization
	require.Len(t, model.requests, 3)
	assert.False(t, gjson.Get(model.requests[2], "tools").Exists())
}

func TestCheck(t *testing.T) {
	serverURL := startToolHost(t)

	out, err := execute(t, "", "check", "--server-url", serverURL, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "name: get_temperature")
	assert.True(t, strings.HasSuffix(out, "\n18\n"), out)

	out, err = execute(t, "", "check", "--server-url", serverURL, "--tool", "add", "--args", `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "\n5\n"), out)

	_, err = execute(t, "", "check", "--server-url", serverURL, "--args", `[1]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --args")
}

func TestRoot_Errors(t *testing.T) {
	_, err := execute(t, "", "check", "--config", "testdata/missing.yaml")
	require.Error(t, err)

	_, err = execute(t, "", "check", "--log-level", "LOUD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "LOUD"`)
}
