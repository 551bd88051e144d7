package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervue/backend/internal/call"
	"github.com/intervue/backend/internal/middleware"
	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/internal/voice"
)

type stubProvider struct {
	mu      sync.Mutex
	subs    map[int]func(voice.Event)
	next    int
	started chan voice.StartRequest
	stops   atomic.Int32
}

func newStubProvider() *stubProvider {
	return &stubProvider{subs: map[int]func(voice.Event){}, started: make(chan voice.StartRequest, 1)}
}

func (p *stubProvider) Start(_ context.Context, req voice.StartRequest) error {
	p.started <- req
	return nil
}

func (p *stubProvider) Stop() error {
	p.stops.Add(1)
	return nil
}

func (p *stubProvider) Subscribe(fn func(voice.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *stubProvider) emit(ev voice.Event) {
	p.mu.Lock()
	subs := make([]func(voice.Event), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (p *stubProvider) say(role models.Role, text string) {
	p.emit(voice.Event{Type: voice.EventMessage, Message: &voice.Message{
		Type: voice.MessageTypeTranscript, TranscriptType: voice.TranscriptFinal, Role: role, Transcript: text,
	}})
}

type interviewTable map[uuid.UUID]*models.Interview

func (t interviewTable) GetByID(_ context.Context, id uuid.UUID) (*models.Interview, error) {
	return t[id], nil
}

type feedbackTable map[uuid.UUID]*models.Feedback

func (t feedbackTable) GetByInterviewAndUser(_ context.Context, interviewID, _ uuid.UUID) (*models.Feedback, error) {
	return t[interviewID], nil
}

type recordedCall struct {
	reason string
	turns  int
}

type memCalls struct {
	mu       sync.Mutex
	started  []*models.CallLog
	finished map[uuid.UUID]recordedCall
}

func (m *memCalls) Start(_ context.Context, l *models.CallLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	m.started = append(m.started, l)
	return nil
}

func (m *memCalls) Finish(_ context.Context, id uuid.UUID, _ time.Time, reason string, turns int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.finished[id]; !done {
		m.finished[id] = recordedCall{reason: reason, turns: turns}
	}
	return nil
}

func (m *memCalls) only() (models.CallLog, recordedCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.started) != 1 {
		return models.CallLog{}, recordedCall{}, false
	}
	rec, ok := m.finished[m.started[0].ID]
	return *m.started[0], rec, ok
}

type capturedFeedback struct {
	mu   sync.Mutex
	reqs []call.FeedbackRequest
}

func (f *capturedFeedback) CreateFeedback(_ context.Context, req call.FeedbackRequest) (call.FeedbackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	id := req.FeedbackID
	if id == "" {
		id = uuid.NewString()
	}
	return call.FeedbackResult{Success: true, FeedbackID: id}, nil
}

func (f *capturedFeedback) requests() []call.FeedbackRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call.FeedbackRequest(nil), f.reqs...)
}

type fixture struct {
	server    *CallServer
	provider  *stubProvider
	calls     *memCalls
	feedback  *capturedFeedback
	interview *models.Interview
	existing  uuid.UUID
	url       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	iv := &models.Interview{ID: uuid.New(), UserID: userID, Questions: []string{"What is Go?", "What is a channel?"}}
	existing := uuid.New()
	f := &fixture{
		provider:  newStubProvider(),
		calls:     &memCalls{finished: map[uuid.UUID]recordedCall{}},
		feedback:  &capturedFeedback{},
		interview: iv,
		existing:  existing,
	}
	cfg := call.DefaultConfig()
	cfg.WorkflowID = "wf-1"
	f.server = NewCallServer(CallServerConfig{
		Hub:         NewHub(nil, nil, nil),
		Interviews:  interviewTable{iv.ID: iv},
		Existing:    feedbackTable{iv.ID: {ID: existing}},
		Calls:       f.calls,
		Feedback:    f.feedback,
		NewProvider: func() voice.Provider { return f.provider },
		Call:        cfg,
	})

	r := gin.New()
	r.GET("/ws/call", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserName, "Ada")
		c.Next()
	}, f.server.ServeCall)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	f.url = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/call"
	return f
}

func (f *fixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url+"?"+query, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *fixture) waitStarted(t *testing.T) voice.StartRequest {
	t.Helper()
	select {
	case req := <-f.provider.started:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("provider was not started")
		return voice.StartRequest{}
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, event string) []WSMessage {
	t.Helper()
	var msgs []WSMessage
	for {
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var m WSMessage
		require.NoError(t, conn.ReadJSON(&m), "waiting for %s, got %v", event, msgs)
		msgs = append(msgs, m)
		if m.Event == event {
			return msgs
		}
	}
}

func waitStatus(t *testing.T, conn *websocket.Conn, status call.Status) {
	t.Helper()
	for {
		msgs := readUntil(t, conn, EventCallStatus)
		if strings.Contains(string(msgs[len(msgs)-1].Data), `"status":"`+string(status)+`"`) {
			return
		}
	}
}

func TestServeCallRunsInterviewToFeedback(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "interview_id="+f.interview.ID.String())

	require.NoError(t, conn.WriteJSON(WSMessage{Event: CmdStart}))
	waitStatus(t, conn, call.StatusConnecting)
	req := f.waitStarted(t)
	require.NotNil(t, req.Assistant)
	assert.Equal(t, voice.FormatQuestions(f.interview.Questions), req.VariableValues[voice.QuestionsVariable])

	f.provider.emit(voice.Event{Type: voice.EventCallStart})
	waitStatus(t, conn, call.StatusActive)

	f.provider.say(models.RoleAssistant, "Tell me about yourself.")
	f.provider.say(models.RoleUser, "I write Go services.")
	f.provider.emit(voice.Event{Type: voice.EventCallEnd})

	msgs := readUntil(t, conn, EventNavigate)
	var transcripts int
	var ended bool
	for _, m := range msgs {
		switch m.Event {
		case EventTranscript:
			transcripts++
		case EventCallEnded:
			ended = true
			assert.JSONEq(t, `{"reason":"call_ended","turns":2}`, string(m.Data))
		}
	}
	assert.Equal(t, 2, transcripts)
	assert.True(t, ended)
	nav := msgs[len(msgs)-1]
	assert.JSONEq(t, `{"view":"feedback","path":"/interview/`+f.interview.ID.String()+`/feedback"}`, string(nav.Data))

	reqs := f.feedback.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, f.existing.String(), reqs[0].FeedbackID)
	assert.Len(t, reqs[0].Transcript, 2)

	require.Eventually(t, func() bool {
		_, rec, ok := f.calls.only()
		return ok && rec.reason == string(call.EndCallEnded) && rec.turns == 2
	}, 2*time.Second, 10*time.Millisecond)
	l, _, _ := f.calls.only()
	assert.Equal(t, "interview", l.Mode)
	require.NotNil(t, l.InterviewID)
	assert.Equal(t, f.interview.ID, *l.InterviewID)
}

func TestServeCallClosingSocketTearsDown(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "interview_id="+f.interview.ID.String())

	require.NoError(t, conn.WriteJSON(WSMessage{Event: CmdStart}))
	f.waitStarted(t)
	f.provider.emit(voice.Event{Type: voice.EventCallStart})
	waitStatus(t, conn, call.StatusActive)
	f.provider.say(models.RoleAssistant, "Hello")
	readUntil(t, conn, EventTranscript)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		_, rec, ok := f.calls.only()
		return ok && rec.reason == EndAbandoned && rec.turns == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return f.provider.stops.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, f.feedback.requests())
	f.server.Wait()
}

func TestServeCallCommands(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "interview_id="+f.interview.ID.String())

	require.NoError(t, conn.WriteJSON(WSMessage{Event: CmdStart}))
	f.waitStarted(t)
	require.NoError(t, conn.WriteJSON(WSMessage{Event: CmdStart}))
	msgs := readUntil(t, conn, EventError)
	assert.Contains(t, string(msgs[len(msgs)-1].Data), "already started")

	require.NoError(t, conn.WriteJSON(WSMessage{Event: CmdSnapshot}))
	msgs = readUntil(t, conn, EventSnapshot)
	assert.Contains(t, string(msgs[len(msgs)-1].Data), string(call.StatusConnecting))

	f.provider.emit(voice.Event{Type: voice.EventCallStart})
	waitStatus(t, conn, call.StatusActive)
	require.NoError(t, conn.WriteJSON(WSMessage{Event: CmdDisconnect}))
	msgs = readUntil(t, conn, EventNavigate)
	assert.Contains(t, string(msgs[len(msgs)-1].Data), `"path":"/"`)
}

func TestServeCallGenerateMode(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "mode=generate")

	require.NoError(t, conn.WriteJSON(WSMessage{Event: CmdStart}))
	req := f.waitStarted(t)
	assert.Equal(t, "wf-1", req.WorkflowID)
	assert.Equal(t, "Ada", req.VariableValues["username"])
}

func TestServeCallRejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		query string
		code  int
	}{
		{"interview_id=nope", http.StatusBadRequest},
		{"interview_id=" + uuid.NewString(), http.StatusNotFound},
		{"mode=karaoke", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(f.url+"?"+tt.query, nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			defer resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}
