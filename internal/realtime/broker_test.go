package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testBroker(debounce time.Duration) *Broker {
	return NewBroker(nil, "test:changes", debounce, zerolog.Nop())
}

func waitEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "canal fechado antes da entrega")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout aguardando evento")
		return Event{}
	}
}

func TestPublishDeliversLocallyWithoutRedis(t *testing.T) {
	broker := testBroker(10 * time.Millisecond)
	sub := broker.Subscribe(nil)
	defer sub.Unsubscribe()

	owner := uuid.New()
	err := broker.Publish(context.Background(), Event{
		Table:    "registrations",
		Action:   ActionInsert,
		RecordID: uuid.New(),
		OwnerID:  owner,
	})
	require.NoError(t, err)

	ev := waitEvent(t, sub.C)
	require.Equal(t, "registrations", ev.Table)
	require.Equal(t, ActionInsert, ev.Action)
	require.Equal(t, owner, ev.OwnerID)
	require.False(t, ev.OccurredAt.IsZero())
}

func TestSubscribeFilterScopesDelivery(t *testing.T) {
	broker := testBroker(10 * time.Millisecond)
	owner := uuid.New()

	mine := broker.Subscribe(func(ev Event) bool { return ev.OwnerID == owner })
	defer mine.Unsubscribe()
	all := broker.Subscribe(nil)
	defer all.Unsubscribe()

	require.NoError(t, broker.Publish(context.Background(), Event{
		Table:    "registrations",
		Action:   ActionUpdate,
		RecordID: uuid.New(),
		OwnerID:  uuid.New(),
	}))

	waitEvent(t, all.C)

	select {
	case ev := <-mine.C:
		t.Fatalf("assinante filtrado não deveria receber: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBurstIsCoalescedIntoSingleDelivery(t *testing.T) {
	broker := testBroker(50 * time.Millisecond)
	sub := broker.Subscribe(nil)
	defer sub.Unsubscribe()

	ctx := context.Background()
	var last uuid.UUID
	for i := 0; i < 5; i++ {
		last = uuid.New()
		require.NoError(t, broker.Publish(ctx, Event{
			Table:    "registrations",
			Action:   ActionUpdate,
			RecordID: last,
			OwnerID:  uuid.New(),
		}))
	}

	ev := waitEvent(t, sub.C)
	require.Equal(t, last, ev.RecordID, "entrega coalescida deve carregar o último evento")

	select {
	case ev := <-sub.C:
		t.Fatalf("rajada deveria virar uma única entrega, veio também %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	broker := testBroker(10 * time.Millisecond)
	sub := broker.Subscribe(nil)

	sub.Unsubscribe()

	_, ok := <-sub.C
	require.False(t, ok, "canal deve estar fechado")

	// Publicar depois do cancelamento não pode entrar em pânico.
	require.NoError(t, broker.Publish(context.Background(), Event{
		Table:    "registrations",
		Action:   ActionInsert,
		RecordID: uuid.New(),
		OwnerID:  uuid.New(),
	}))

	// Unsubscribe repetido é inofensivo.
	sub.Unsubscribe()
}
