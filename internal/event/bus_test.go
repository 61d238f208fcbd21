package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()

	first, unsubscribeFirst := bus.Subscribe()
	second, unsubscribeSecond := bus.Subscribe()
	defer unsubscribeSecond()

	bus.Publish(Event{ID: "1", Type: TypeLedgerAppended})

	got := <-first
	assert.Equal(t, TypeLedgerAppended, got.Type)
	got = <-second
	assert.Equal(t, "1", got.ID)

	unsubscribeFirst()
	unsubscribeFirst()

	_, open := <-first
	assert.False(t, open)

	bus.Publish(Event{ID: "2", Type: TypeLedgerPurged})
	got = <-second
	assert.Equal(t, TypeLedgerPurged, got.Type)
}

func TestInMemoryBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Type: TypeLedgerAppended})
	}

	require.Len(t, events, subscriberBuffer)
}
