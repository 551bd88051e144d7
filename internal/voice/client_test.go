package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervue/backend/internal/models"
)

type fakeProvider struct {
	t        *testing.T
	upgrader websocket.Upgrader
	frames   chan map[string]any
	script   func(conn *websocket.Conn)
	auth     chan string
}

func newFakeProvider(t *testing.T, script func(conn *websocket.Conn)) (*fakeProvider, *httptest.Server) {
	p := &fakeProvider{
		t:      t,
		frames: make(chan map[string]any, 8),
		script: script,
		auth:   make(chan string, 1),
	}
	srv := httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	p.auth <- r.Header.Get("Authorization")
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var start map[string]any
	if err := conn.ReadJSON(&start); err != nil {
		return
	}
	p.frames <- start
	if p.script != nil {
		p.script(conn)
	}
	for {
		var f map[string]any
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		p.frames <- f
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collect(c *Client) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	unsub := c.Subscribe(func(ev Event) { ch <- ev })
	return ch, unsub
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestClientStartSendsAssistantAndRelaysEvents(t *testing.T) {
	p, srv := newFakeProvider(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": "call-start"})
		_ = conn.WriteJSON(map[string]any{"type": "speech-start"})
		_ = conn.WriteJSON(map[string]any{"type": "message", "message": map[string]any{
			"type": "transcript", "transcriptType": "final", "role": "assistant", "transcript": "Hello there",
		}})
		_ = conn.WriteJSON(map[string]any{"type": "volume-level", "volume": 0.3})
		_ = conn.WriteJSON(map[string]any{"type": "call-end"})
	})

	c := NewClient(ClientConfig{URL: wsURL(srv), APIKey: "secret"}, nil)
	events, unsub := collect(c)
	defer unsub()

	err := c.Start(context.Background(), StartRequest{
		Assistant:      Interviewer(),
		VariableValues: map[string]string{QuestionsVariable: FormatQuestions([]string{"Why Go?"})},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", <-p.auth)

	start := <-p.frames
	assert.Equal(t, "start", start["type"])
	assistant, ok := start["assistant"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Interviewer", assistant["name"])
	overrides := start["assistantOverrides"].(map[string]any)
	assert.Equal(t, map[string]any{"questions": "- Why Go?"}, overrides["variableValues"])

	assert.Equal(t, EventCallStart, next(t, events).Type)
	assert.Equal(t, EventSpeechStart, next(t, events).Type)
	msg := next(t, events)
	require.Equal(t, EventMessage, msg.Type)
	assert.True(t, msg.Message.IsFinalTranscript())
	assert.Equal(t, models.RoleAssistant, msg.Message.Role)
	assert.Equal(t, "Hello there", msg.Message.Transcript)
	assert.Equal(t, EventCallEnd, next(t, events).Type)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
}

func TestClientStopSendsStopFrame(t *testing.T) {
	p, srv := newFakeProvider(t, nil)
	c := NewClient(ClientConfig{URL: wsURL(srv)}, nil)

	require.NoError(t, c.Start(context.Background(), StartRequest{WorkflowID: "wf-1", VariableValues: map[string]string{"username": "Ada"}}))
	start := <-p.frames
	assert.Equal(t, "wf-1", start["workflowId"])
	assert.Nil(t, start["assistant"])

	require.NoError(t, c.Stop())
	select {
	case f := <-p.frames:
		assert.Equal(t, "stop", f["type"])
	case <-time.After(2 * time.Second):
		t.Fatal("stop frame not received")
	}
}

func TestClientAbnormalCloseEmitsError(t *testing.T) {
	_, srv := newFakeProvider(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": "call-start"})
		_ = conn.UnderlyingConn().Close()
	})
	c := NewClient(ClientConfig{URL: wsURL(srv)}, nil)
	events, unsub := collect(c)
	defer unsub()

	require.NoError(t, c.Start(context.Background(), StartRequest{WorkflowID: "wf"}))
	assert.Equal(t, EventCallStart, next(t, events).Type)
	ev := next(t, events)
	assert.Equal(t, EventError, ev.Type)
	assert.Error(t, ev.Err)
}

func TestClientStartRejectsBadRequests(t *testing.T) {
	c := NewClient(ClientConfig{URL: "ws://127.0.0.1:1"}, nil)
	assert.Error(t, c.Start(context.Background(), StartRequest{}))
	assert.Error(t, c.Start(context.Background(), StartRequest{WorkflowID: "wf", Assistant: Interviewer()}))
}

func TestClientStartTwice(t *testing.T) {
	_, srv := newFakeProvider(t, nil)
	c := NewClient(ClientConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, c.Start(context.Background(), StartRequest{WorkflowID: "wf"}))
	assert.ErrorIs(t, c.Start(context.Background(), StartRequest{WorkflowID: "wf"}), ErrAlreadyStarted)
	require.NoError(t, c.Stop())
}

func TestClientDialFailure(t *testing.T) {
	c := NewClient(ClientConfig{URL: "ws://127.0.0.1:1", ConnectTimeout: 500 * time.Millisecond}, nil)
	err := c.Start(context.Background(), StartRequest{WorkflowID: "wf"})
	require.Error(t, err)
	require.NoError(t, c.Stop())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := NewClient(ClientConfig{}, nil)
	var got []EventType
	unsub := c.Subscribe(func(ev Event) { got = append(got, ev.Type) })
	c.emit(Event{Type: EventSpeechStart})
	unsub()
	unsub()
	c.emit(Event{Type: EventSpeechEnd})
	assert.Equal(t, []EventType{EventSpeechStart}, got)
}

func TestDecodeFrame(t *testing.T) {
	ev, ok, err := decodeFrame([]byte(`{"type":"error","error":{"message":"quota exceeded"}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualError(t, ev.Err, "quota exceeded")

	_, ok, err = decodeFrame([]byte(`{"type":"model-output"}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = decodeFrame([]byte(`{"type":"message"}`))
	assert.Error(t, err)

	_, _, err = decodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestInterviewerAssistantShape(t *testing.T) {
	a := Interviewer()
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"voiceId":"sarah"`)
	assert.Contains(t, a.Model.Messages[0].Content, "{{questions}}")
	assert.Contains(t, a.Model.Messages[0].Content, "That concludes our interview for today. Thank you for your time.")
}

func TestFormatQuestions(t *testing.T) {
	assert.Equal(t, "- a\n- b", FormatQuestions([]string{"a", "b"}))
	assert.Equal(t, "", FormatQuestions(nil))
}
