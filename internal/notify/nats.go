package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// publisher is the part of jetstream.JetStream the notifier uses.
type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamNotifier publishes events as JSON on a JetStream subject.
type JetStreamNotifier struct {
	nc      *nats.Conn
	js      publisher
	subject string
}

// NewJetStreamNotifier connects to url and makes sure stream exists and captures subject.
func NewJetStreamNotifier(ctx context.Context, url, stream, subject string) (*JetStreamNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("streamguard"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	_, err = js.Stream(ctx, stream)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{Name: stream, Subjects: []string{subject}})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create stream %s: %w", stream, err)
		}
	} else if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get stream %s: %w", stream, err)
	}

	return &JetStreamNotifier{nc: nc, js: js, subject: subject}, nil
}

// NotifyStreamBlocked publishes ev and waits for the stream's ack. The session history id is used
// as the message id so a retried publish is de-duplicated.
func (n *JetStreamNotifier) NotifyStreamBlocked(ctx context.Context, ev StreamBlocked) error {
	if n == nil || n.js == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var opts []jetstream.PublishOpt
	if ev.SessionHistoryID != "" {
		opts = append(opts, jetstream.WithMsgID(ev.SessionHistoryID))
	}
	if _, err := n.js.Publish(ctx, n.subject, payload, opts...); err != nil {
		return fmt.Errorf("jetstream publish %s: %w", n.subject, err)
	}
	return nil
}

// Close drains the connection. Safe to call on nil.
func (n *JetStreamNotifier) Close() error {
	if n == nil || n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}
