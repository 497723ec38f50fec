package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/krishamaze/repairshop-api/internal/events"
)

type memStore struct {
	inserted []events.Event
	err      error
}

func (s *memStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	ev := events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}
	s.inserted = append(s.inserted, ev)
	return ev, nil
}

type recordingNotifier struct {
	seen []events.Event
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.seen = append(n.seen, ev)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	id := uuid.New()
	ev, err := bus.Emit(context.Background(), events.TopicQuoteSaved, id, map[string]any{"revision": 1})
	require.NoError(t, err)
	require.Equal(t, events.TopicQuoteSaved, ev.Topic)
	require.Equal(t, id, ev.AggregateID)
	require.Len(t, store.inserted, 1)
	require.Len(t, notifier.seen, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, float64(1), payload["revision"])
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := &events.Bus{Store: &memStore{}}

	_, err := bus.Emit(context.Background(), "", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicBookingCreated, uuid.Nil, nil)
	require.Error(t, err)
}

func TestEmitNotifierFailureDoesNotUndoPersist(t *testing.T) {
	store := &memStore{}
	failing := &recordingNotifier{err: errors.New("webhook down")}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{failing}}

	_, err := bus.Emit(context.Background(), events.TopicQuotePriced, uuid.New(), nil)
	require.Error(t, err)
	require.Len(t, store.inserted, 1)
}

func TestEmitStoreFailure(t *testing.T) {
	bus := &events.Bus{Store: &memStore{err: errors.New("db down")}}

	_, err := bus.Emit(context.Background(), events.TopicQuotePriced, uuid.New(), nil)
	require.Error(t, err)
}
