package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(hub *Hub, userID uuid.UUID) *Client {
	return newClient(userID, hub, nil, zap.NewNop())
}

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestHubSendsToEveryClientOfUser(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	alice, bob := uuid.New(), uuid.New()
	tab1, tab2, other := testClient(hub, alice), testClient(hub, alice), testClient(hub, bob)
	hub.Register(tab1)
	hub.Register(tab2)
	hub.Register(other)
	assert.Equal(t, 2, hub.ClientCount(alice))

	hub.Publish(alice, EventCallStatus, map[string]string{"status": "ACTIVE"})

	for _, c := range []*Client{tab1, tab2} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, EventCallStatus, msgs[0].Event)
		assert.JSONEq(t, `{"status":"ACTIVE"}`, string(msgs[0].Data))
	}
	assert.Empty(t, drain(other))

	hub.Unregister(tab1)
	hub.Unregister(tab2)
	assert.Equal(t, 0, hub.ClientCount(alice))
	hub.SendToUser(alice, EventCallStatus, nil)
}

func TestClientDropsEventsAfterClose(t *testing.T) {
	c := testClient(NewHub(nil, nil, nil), uuid.New())
	c.close()
	c.Send(EventError, map[string]string{"message": "late"})
	assert.Empty(t, drain(c))
}

func TestHubFansOutThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ps := NewRedisPubSub(rdb, nil)

	// two instances sharing one Redis
	hubA := NewHub(nil, ps, ps)
	hubB := NewHub(nil, ps, ps)
	userID := uuid.New()
	onA, onB := testClient(hubA, userID), testClient(hubB, userID)
	hubA.Register(onA)
	hubB.Register(onB)
	t.Cleanup(func() {
		hubA.Unregister(onA)
		hubB.Unregister(onB)
	})

	hubA.Publish(userID, EventCallStatus, map[string]string{"status": "CONNECTING"})

	for _, c := range []*Client{onA, onB} {
		select {
		case m := <-c.send:
			assert.Equal(t, EventCallStatus, m.Event)
			assert.JSONEq(t, `{"status":"CONNECTING"}`, string(m.Data))
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered")
		}
	}
	// exactly once per client
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, drain(onA))
}

func TestRedisPubSubCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ps := NewRedisPubSub(rdb, nil)
	userID := uuid.New()

	got := make(chan WSMessage, 4)
	cancel, err := ps.SubscribeUser(userID, func(event string, payload []byte) {
		got <- WSMessage{Event: event, Data: json.RawMessage(payload)}
	})
	require.NoError(t, err)

	require.NoError(t, ps.PublishUserEvent(userID, "ping", []byte(`{"n":1}`)))
	select {
	case m := <-got:
		assert.Equal(t, "ping", m.Event)
		assert.JSONEq(t, `{"n":1}`, string(m.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	assert.Equal(t, "user:"+userID.String(), UserChannel(userID))

	cancel()
}
