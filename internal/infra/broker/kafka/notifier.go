package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"realty/internal/app/policies"
)

const DefaultEmailTopic = "notifications.email.v1"

type publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// EmailNotifier hands templated e-mail requests to the mailer over a topic.
type EmailNotifier struct {
	Producer publisher
	Topic    string
	Now      func() time.Time
}

type emailMessage struct {
	ID        string            `json:"id"`
	Template  string            `json:"template"`
	To        string            `json:"to"`
	Subject   string            `json:"subject,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Requested time.Time         `json:"requested_at"`
}

func (n EmailNotifier) Send(ctx context.Context, email policies.Email) error {
	if n.Producer == nil {
		return errors.New("notify: producer missing")
	}
	to := strings.TrimSpace(email.To)
	if to == "" {
		return errors.New("notify: recipient required")
	}
	now := time.Now().UTC()
	if n.Now != nil {
		now = n.Now().UTC()
	}
	msg := emailMessage{
		ID:        uuid.NewString(),
		Template:  email.Template,
		To:        to,
		Subject:   email.Subject,
		Data:      email.Data,
		Requested: now,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := n.Topic
	if topic == "" {
		topic = DefaultEmailTopic
	}
	return n.Producer.Publish(ctx, topic, to, payload, map[string]string{
		"content-type": "application/json",
		"template":     email.Template,
	})
}

var _ policies.Notifier = EmailNotifier{}
