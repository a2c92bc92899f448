package realtime

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case msg := <-sub.C:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHub_RoomScopedDelivery(t *testing.T) {
	hub := NewHub(4)
	admin := hub.Subscribe(RoomAdmin)
	defer admin.Close()
	participant := hub.Subscribe(ParticipantRoom("p1"), SubEventRoom("s1"))
	defer participant.Close()

	hub.Publish(RoomAdmin, EventParticipantApproved, map[string]any{"id": "p1"})
	hub.Publish(SubEventRoom("s1"), EventRoundStarted, nil)

	msg := receive(t, admin)
	assert.Equal(t, EventParticipantApproved, msg.Event)
	assert.Equal(t, RoomAdmin, msg.Room)

	msg = receive(t, participant)
	assert.Equal(t, EventRoundStarted, msg.Event)
	assert.Equal(t, "subevent:s1", msg.Room)

	select {
	case extra := <-admin.C:
		t.Fatalf("admin received unexpected %s", extra.Event)
	default:
	}
}

func TestHub_DropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("room")
	defer sub.Close()

	hub.Publish("room", "first", nil)
	hub.Publish("room", "second", nil)

	assert.Equal(t, "first", receive(t, sub).Event)
	select {
	case <-sub.C:
		t.Fatal("second message should have been dropped")
	default:
	}
}

func TestSubscription_CloseDetaches(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("a", "b")
	assert.Equal(t, 1, hub.SubscriberCount("a"))

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.SubscriberCount("a"))
	assert.Equal(t, 0, hub.SubscriberCount("b"))
	_, ok := <-sub.C
	assert.False(t, ok)

	hub.Publish("a", "after-close", nil)
}

type countingBroadcaster struct{ n int }

func (c *countingBroadcaster) Publish(room, event string, payload any) { c.n++ }

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingBroadcaster{}, &countingBroadcaster{}
	Multi{a, nil, b}.Publish("admin", "x", nil)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteEvent(w, Message{Room: "admin", Event: EventJudgeLoggedIn, Data: map[string]any{"judge": "Meera"}}))
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.Contains(t, out, "event: judge:logged_in\n")
	assert.Contains(t, out, `"judge":"Meera"`)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n\n")))
}

func TestFormatAdminEvent(t *testing.T) {
	text := FormatAdminEvent(EventParticipantApproved, map[string]any{"name": "Asha", "chest_number": 7})
	assert.Equal(t, "🔔 participant:approved\nchest_number: 7\nname: Asha", text)
	assert.Equal(t, "🔔 round:ended", FormatAdminEvent(EventRoundEnded, nil))
}
