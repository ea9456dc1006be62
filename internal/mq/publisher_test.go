package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/septivank/meter-reading-service/internal/reading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []published
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

var testRoutes = Routes{Created: "meter.reading.created", Confirmed: "meter.reading.confirmed"}

func sampleReading() reading.Reading {
	return reading.Reading{
		ID:           uuid.MustParse("6f1c5f3e-8a52-4c1b-9d59-2d4f0c7a9b10"),
		CustomerCode: "1234",
		Category:     reading.CategoryWater,
		MeasuredAt:   time.Date(2023, 8, 28, 0, 0, 0, 0, time.UTC),
		Value:        100,
		ImageURL:     "https://files.example/abc",
	}
}

func TestNotify_CreatedEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "meter-reading.events.exchange", testRoutes, zap.NewNop())

	err := p.Notify(context.Background(), reading.Event{
		Kind:          reading.EventCreated,
		Reading:       sampleReading(),
		SuspectReason: "meter regression",
	})
	require.NoError(t, err)
	require.Len(t, ch.published, 1)

	got := ch.published[0]
	assert.Equal(t, "meter-reading.events.exchange", got.exchange)
	assert.Equal(t, "meter.reading.created", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)

	var body ReadingEvent
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, "reading.created", body.Event)
	assert.Equal(t, "6f1c5f3e-8a52-4c1b-9d59-2d4f0c7a9b10", body.MeasureUUID)
	assert.Equal(t, "WATER", body.MeasureType)
	assert.Equal(t, "2023-08-28T00:00:00Z", body.MeasureDatetime)
	assert.Equal(t, int64(100), body.MeasureValue)
	assert.Equal(t, "meter regression", body.SuspectReason)
}

func TestNotify_ConfirmedEventUsesConfirmedRoute(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "ex", testRoutes, zap.NewNop())

	r := sampleReading()
	r.Confirmed = true
	require.NoError(t, p.Notify(context.Background(), reading.Event{Kind: reading.EventConfirmed, Reading: r}))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "meter.reading.confirmed", ch.published[0].key)
	assert.NotContains(t, string(ch.published[0].msg.Body), "suspect_reason")
}

func TestPublishReadingEvent_ChannelError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newPublisher(ch, "ex", testRoutes, zap.NewNop())

	err := p.PublishReadingEvent(context.Background(), ReadingEvent{Event: "reading.created"}, "k")
	assert.ErrorContains(t, err, "channel closed")
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "ex", testRoutes, zap.NewNop())

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
