package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty/internal/app/policies"
)

func TestProducerSendsHeadersInOrder(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		assert.JSONEq(t, `{"a":1}`, string(val))
		return nil
	})
	p := NewProducerFrom(mock)
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), "reservation.events.v1", "r1", []byte(`{"a":1}`), map[string]string{"b": "2", "a": "1"}))

	hs := recordHeaders(map[string]string{"b": "2", "a": "1"})
	require.Len(t, hs, 2)
	assert.Equal(t, "a", string(hs[0].Key))
}

func TestProducerHonoursCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := NewProducerFrom(mock)
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
}

type capture struct {
	topic   string
	key     string
	payload []byte
}

func (c *capture) Publish(_ context.Context, topic, key string, payload []byte, _ map[string]string) error {
	c.topic, c.key, c.payload = topic, key, payload
	return nil
}

func TestEmailNotifierPublishesRequest(t *testing.T) {
	var c capture
	at := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	n := EmailNotifier{Producer: &c, Now: func() time.Time { return at }}

	err := n.Send(context.Background(), policies.Email{
		Template: policies.TemplateReceipt,
		To:       " guest@example.com ",
		Subject:  "Your receipt",
		Data:     map[string]string{"total": "1342.00"},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultEmailTopic, c.topic)
	assert.Equal(t, "guest@example.com", c.key)

	var msg emailMessage
	require.NoError(t, json.Unmarshal(c.payload, &msg))
	assert.Equal(t, policies.TemplateReceipt, msg.Template)
	assert.Equal(t, "1342.00", msg.Data["total"])
	assert.True(t, msg.Requested.Equal(at))
	assert.NotEmpty(t, msg.ID)

	require.Error(t, n.Send(context.Background(), policies.Email{Template: policies.TemplateReceipt}))
}

var _ sarama.SyncProducer = (*mocks.SyncProducer)(nil)
