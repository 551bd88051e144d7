package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			require.NoError(t, json.Unmarshal(body, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteJSONDecodesAnswer(t *testing.T) {
	var captured map[string]any
	srv := chatServer(t, `{"questions":["Why Go?","What is a goroutine?"]}`, &captured)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini"}, nil)

	var out struct {
		Questions []string `json:"questions"`
	}
	err := c.CompleteJSON(context.Background(), JSONRequest{
		Name:   "questions",
		System: "sys",
		Prompt: "prompt",
		Schema: Object(map[string]*Schema{"questions": Array(String(""))}),
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Why Go?", "What is a goroutine?"}, out.Questions)

	format := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)["schema"].(map[string]any)
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Equal(t, []any{"questions"}, schema["required"])
}

func TestCompleteJSONRejectsInvalidJSON(t *testing.T) {
	srv := chatServer(t, `not json`, nil)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	var out map[string]any
	err := c.CompleteJSON(context.Background(), JSONRequest{Name: "x", Schema: Object(nil)}, &out)
	assert.Error(t, err)
}

func TestCompleteJSONPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	var out map[string]any
	err := c.CompleteJSON(context.Background(), JSONRequest{Name: "x", Schema: Object(nil)}, &out)
	assert.Error(t, err)
}

func TestObjectRequiresAllPropertiesSorted(t *testing.T) {
	s := Object(map[string]*Schema{"b": String(""), "a": Integer("")})
	assert.Equal(t, []string{"a", "b"}, s.Required)
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"additionalProperties":false`)
}
