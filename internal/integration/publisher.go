package integration

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/odyssey-erp/stockroom/internal/inventory"
)

// DefaultSubject prefixes movement subjects when none is configured.
const DefaultSubject = "stockroom.movements"

// MsgPublisher is the part of *nats.Conn the publisher needs.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher emits movement envelopes on NATS.
type Publisher struct {
	conn    MsgPublisher
	subject string
	service string
	now     func() time.Time
}

// NewPublisher wraps a NATS connection.
func NewPublisher(conn MsgPublisher, subject, service string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject, service: service, now: time.Now}
}

// PublishMovement serializes the movement and publishes it on <subject>.<kind>.
func (p *Publisher) PublishMovement(ctx context.Context, evt inventory.MovementPostedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := movementEnvelope(evt, p.now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: movementSubject(p.subject, evt.Kind),
		Data:    data,
		Header: nats.Header{
			"event_id":     []string{env.ID.String()},
			"event_type":   []string{env.Type},
			"account_id":   []string{strconv.FormatInt(evt.AccountID, 10)},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
		},
	}
	return p.conn.PublishMsg(msg)
}
