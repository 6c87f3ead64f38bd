package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maheshrc27/socialpilot/internal/models"
	"github.com/nats-io/nats.go"
)

const SubjectPostStatus = "posts.status"

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NatsNotifier announces aggregate post status changes on NATS.
type NatsNotifier struct {
	conn    Publisher
	subject string
}

func NewNatsNotifier(conn Publisher) *NatsNotifier {
	return &NatsNotifier{conn: conn, subject: SubjectPostStatus}
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

func (n *NatsNotifier) NotifyPostStatus(ctx context.Context, event models.PostStatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}
