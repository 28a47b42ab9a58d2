package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("run-1")
	other := b.Subscribe("run-2")

	b.Publish("run-1", Event{Type: "progress", Data: map[string]any{"objective": 12.5}})

	select {
	case got := <-ch:
		assert.Equal(t, "progress", got.Type)
		assert.Equal(t, 12.5, got.Data.(map[string]any)["objective"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case evt := <-other:
		t.Fatalf("unexpected event on other topic: %+v", evt)
	default:
	}

	b.Unsubscribe("run-1", ch)
	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
	// a second unsubscribe and publishing without subscribers are no-ops
	b.Unsubscribe("run-1", ch)
	b.Publish("run-1", Event{Type: "progress"})
	b.Unsubscribe("run-2", other)
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("t")
	defer b.Unsubscribe("t", ch)
	for i := 0; i < cap(ch)+10; i++ {
		b.Publish("t", Event{Type: "progress", Data: i})
	}
	assert.Len(t, ch, cap(ch))
}
