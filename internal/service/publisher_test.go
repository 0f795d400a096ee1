package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/jewelry-storefront/internal/queue"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func publisherWith(ch *fakeChannel, dialErr error) (*Publisher, *bool) {
	released := false
	p := NewPublisher("amqp://test", nil)
	p.dial = func(string) (channel, func() error, error) {
		if dialErr != nil {
			return nil, nil, dialErr
		}
		release := func() error {
			released = true
			return nil
		}
		return ch, release, nil
	}
	return p, &released
}

func TestPublisher_UserRegistered(t *testing.T) {
	ch := &fakeChannel{}
	p, released := publisherWith(ch, nil)
	ev := queue.UserRegisteredEvent{ClientID: "shop1", UserID: "u-1", Name: "Ana", Email: "ana@x.com", RegisteredAt: time.Now().UTC()}

	require.NoError(t, p.UserRegistered(context.Background(), ev))
	assert.Equal(t, []string{queue.UserRegisteredQueue}, ch.declared)
	assert.Equal(t, []string{queue.UserRegisteredQueue}, ch.keys)
	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)

	var got queue.UserRegisteredEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, "shop1", got.ClientID)
	assert.Equal(t, "ana@x.com", got.Email)
	assert.True(t, ch.closed)
	assert.True(t, *released)
}

func TestPublisher_Failures(t *testing.T) {
	p, _ := publisherWith(nil, errors.New("connection refused"))
	assert.Error(t, p.UserRegistered(context.Background(), queue.UserRegisteredEvent{}))

	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, released := publisherWith(ch, nil)
	err := p.UserRegistered(context.Background(), queue.UserRegisteredEvent{})
	assert.ErrorContains(t, err, "channel closed")
	assert.True(t, ch.closed)
	assert.True(t, *released)
}
