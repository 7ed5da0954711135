package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []StreamBlocked
	err    error
	done   chan struct{}
}

func newRecorder(err error) *recorder {
	return &recorder{err: err, done: make(chan struct{}, 16)}
}

func (r *recorder) NotifyStreamBlocked(ctx context.Context, ev StreamBlocked) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func sampleEvent() StreamBlocked {
	return StreamBlocked{
		UserID:           "u1",
		Username:         "alice",
		DeviceIdentifier: "tv-1",
		StopCode:         "DEVICE_PENDING",
		SessionHistoryID: "h-1",
		OccurredAt:       time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC),
	}
}

func TestMulti(t *testing.T) {
	ok := newRecorder(nil)
	failing := newRecorder(errors.New("broker down"))
	m := Multi{ok, nil, failing}

	err := m.NotifyStreamBlocked(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())

	assert.NoError(t, Multi{ok}.NotifyStreamBlocked(context.Background(), sampleEvent()))
	assert.NoError(t, Nop{}.NotifyStreamBlocked(context.Background(), sampleEvent()))
}

func TestDispatcher_Delivers(t *testing.T) {
	var d Dispatcher
	r := newRecorder(errors.New("ignored"))
	d.Go(r, nil, sampleEvent())

	require.True(t, d.Wait(2*time.Second), "delivery should finish")
	<-r.done
	assert.Equal(t, "DEVICE_PENDING", r.events[0].StopCode)
}

func TestDispatcher_NilNotifier(t *testing.T) {
	var d Dispatcher
	d.Go(nil, nil, sampleEvent())
	assert.True(t, d.Wait(10*time.Millisecond))
}

type blockingNotifier struct {
	release chan struct{}
}

func (b blockingNotifier) NotifyStreamBlocked(ctx context.Context, _ StreamBlocked) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatcher_WaitTracksInFlight(t *testing.T) {
	var d Dispatcher
	n := blockingNotifier{release: make(chan struct{})}
	d.Go(n, nil, sampleEvent())
	d.Go(n, nil, sampleEvent())

	assert.False(t, d.Wait(20*time.Millisecond), "deliveries are still in flight")

	close(n.release)
	assert.True(t, d.Wait(2*time.Second))
}

type fakeWriter struct {
	msgs     []kafka.Message
	deadline bool
	err      error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, f.deadline = ctx.Deadline()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaNotifier{writer: w, topic: "t"}

	require.NoError(t, k.NotifyStreamBlocked(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("u1"), w.msgs[0].Key)
	assert.True(t, w.deadline)

	var got StreamBlocked
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, sampleEvent(), got)

	w.err = errors.New("leader not available")
	assert.Error(t, k.NotifyStreamBlocked(context.Background(), sampleEvent()))
}

func TestKafkaNotifier_Disabled(t *testing.T) {
	assert.Nil(t, NewKafkaNotifier(nil, "topic"))
	assert.Nil(t, NewKafkaNotifier([]string{"localhost:9092"}, ""))

	var k *KafkaNotifier
	assert.NoError(t, k.NotifyStreamBlocked(context.Background(), sampleEvent()))
	assert.NoError(t, k.Close())
}

type fakePublisher struct {
	subject string
	payload []byte
	opts    int
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.subject, f.payload, f.opts = subject, payload, len(opts)
	if f.err != nil {
		return nil, f.err
	}
	return &jetstream.PubAck{Stream: "STREAMGUARD", Sequence: 1}, nil
}

func TestJetStreamNotifier(t *testing.T) {
	p := &fakePublisher{}
	n := &JetStreamNotifier{js: p, subject: "streamguard.stream.blocked"}

	require.NoError(t, n.NotifyStreamBlocked(context.Background(), sampleEvent()))
	assert.Equal(t, "streamguard.stream.blocked", p.subject)
	assert.Equal(t, 1, p.opts, "history id is sent as the message id")

	var got StreamBlocked
	require.NoError(t, json.Unmarshal(p.payload, &got))
	assert.Equal(t, "h-1", got.SessionHistoryID)

	p.err = errors.New("no responders")
	assert.ErrorContains(t, n.NotifyStreamBlocked(context.Background(), sampleEvent()), "no responders")

	var nilNotifier *JetStreamNotifier
	assert.NoError(t, nilNotifier.NotifyStreamBlocked(context.Background(), sampleEvent()))
	assert.NoError(t, nilNotifier.Close())
}
