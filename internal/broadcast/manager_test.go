package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/testutil"
)

func TestEncode(t *testing.T) {
	msg, err := Encode(model.EventPlayerLeft, model.PlayerLeftPayload{DisplayName: "Bob"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"playerLeft","payload":{"displayName":"Bob"}}`, string(msg))
}

func TestEncodeNilPayload(t *testing.T) {
	msg, err := Encode(model.EventSessionStarted, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"sessionStarted","payload":{}}`, string(msg))
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	m := NewManager(testutil.NopLogger())
	a := testutil.NewRecorder("a")
	b := testutil.NewRecorder("b")
	other := testutil.NewRecorder("other")
	m.Subscribe(a, "s1")
	m.Subscribe(b, "s1")
	m.Subscribe(other, "s2")

	m.Publish("s1", model.EventSessionStarted, nil)

	assert.Equal(t, []model.EventType{model.EventSessionStarted}, a.Types())
	assert.Equal(t, []model.EventType{model.EventSessionStarted}, b.Types())
	assert.Empty(t, other.Types())
}

func TestPublishPreservesOrder(t *testing.T) {
	m := NewManager(testutil.NopLogger())
	a := testutil.NewRecorder("a")
	m.Subscribe(a, "s1")

	m.Publish("s1", model.EventPlayerJoined, model.PlayerJoinedPayload{DisplayName: "Bob"})
	m.Publish("s1", model.EventSessionStarted, nil)
	m.Publish("s1", model.EventPlayerLeft, model.PlayerLeftPayload{DisplayName: "Bob"})

	assert.Equal(t, []model.EventType{
		model.EventPlayerJoined,
		model.EventSessionStarted,
		model.EventPlayerLeft,
	}, a.Types())
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	m := NewManager(testutil.NopLogger())

	m.Publish("missing", model.EventSessionEnded, nil)

	assert.Nil(t, m.Hub("missing"))
	assert.Equal(t, 0, m.SubscriberCount("missing"))
}

func TestSubscribeTwiceDeliversOnce(t *testing.T) {
	m := NewManager(testutil.NopLogger())
	a := testutil.NewRecorder("a")
	m.Subscribe(a, "s1")
	m.Subscribe(a, "s1")

	m.Publish("s1", model.EventSessionEnded, nil)

	assert.Equal(t, 1, m.SubscriberCount("s1"))
	assert.Len(t, a.Types(), 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager(testutil.NopLogger())
	a := testutil.NewRecorder("a")
	m.Subscribe(a, "s1")
	m.Unsubscribe(a, "s1")

	m.Publish("s1", model.EventSessionEnded, nil)

	assert.Empty(t, a.Types())
	assert.Equal(t, 0, m.SubscriberCount("s1"))
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	m := NewManager(testutil.NopLogger())
	slow := testutil.NewFullRecorder("slow", 1)
	fast := testutil.NewRecorder("fast")
	m.Subscribe(slow, "s1")
	m.Subscribe(fast, "s1")

	m.Publish("s1", model.EventTimeUpdate, nil)
	m.Publish("s1", model.EventTimeUpdate, nil)

	assert.Len(t, slow.Types(), 1)
	assert.Len(t, fast.Types(), 2)
}

func TestEmitTargetsOneSubscriber(t *testing.T) {
	m := NewManager(testutil.NopLogger())
	a := testutil.NewRecorder("a")
	b := testutil.NewRecorder("b")
	m.Subscribe(a, "s1")
	m.Subscribe(b, "s1")

	m.Emit(a, model.EventJoinError, model.ErrorPayload{Error: "incorrect password"})

	var payload model.ErrorPayload
	require.True(t, a.Last(model.EventJoinError, &payload))
	assert.Equal(t, "incorrect password", payload.Error)
	assert.Empty(t, b.Types())
}

func TestRemove(t *testing.T) {
	m := NewManager(testutil.NopLogger())
	a := testutil.NewRecorder("a")
	m.Subscribe(a, "s1")
	m.Subscribe(a, "s2")

	m.Remove("s1")
	assert.Nil(t, m.Hub("s1"))
	assert.NotNil(t, m.Hub("s2"))

	m.Publish("s1", model.EventSessionEnded, nil)
	assert.Empty(t, a.Types())
}
