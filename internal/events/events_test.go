package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/support-bot/internal/model"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func answeredReport() *model.Report {
	username := "alice"
	reply := "restart"
	by := "bob"
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.Report{
		ID: 9, UserID: 77, Username: &username, Message: "crash",
		Status: model.ReportStatusAnswered, Reply: &reply, RepliedBy: &by, RepliedAt: &at,
	}
}

func TestForReport(t *testing.T) {
	ev := ForReport(ReportAnswered, answeredReport())
	assert.Equal(t, ReportAnswered, ev.Type)
	assert.Equal(t, uint64(9), ev.ReportID)
	assert.Equal(t, "alice", ev.Username)
	assert.Equal(t, "answered", ev.Status)
	assert.Equal(t, "restart", ev.Reply)
	assert.Equal(t, "bob", ev.Actor)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestMultiAndAsync(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	async := NewAsync(Multi{a, b, Nop{}}, time.Second)
	async.Publish(context.Background(), ForHelper(HelperAdded, "bob", "admin"))
	async.Publish(context.Background(), ForHelper(HelperRemoved, "bob", "admin"))
	async.Close()

	assert.Len(t, a.all(), 2)
	assert.Len(t, b.all(), 2)
}

func TestWebhookPostsJSON(t *testing.T) {
	var got Event
	var kind string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind = r.Header.Get("X-Event-Type")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, quiet, nil)
	assert.True(t, w.post(context.Background(), ForReport(ReportPurged, answeredReport())))
	assert.Equal(t, ReportPurged, kind)
	assert.Equal(t, uint64(9), got.ReportID)
}

func TestWebhookFailuresAreSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, quiet, nil)
	assert.False(t, w.post(context.Background(), ForHelper(HelperAdded, "x", "y")))
	assert.NotPanics(t, func() { NewWebhook("", quiet, nil).Publish(context.Background(), Event{}) })
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher(t *testing.T) {
	disabled := NewKafkaPublisher(nil, "reports", quiet, nil)
	assert.NotPanics(t, func() { disabled.Publish(context.Background(), Event{Type: ReportCreated}) })
	assert.NoError(t, disabled.Close())

	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, log: quiet}
	p.Publish(context.Background(), ForReport(ReportCreated, answeredReport()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "9", string(w.msgs[0].Key))

	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, ReportCreated, ev.Type)

	w.err = errors.New("broker down")
	assert.NotPanics(t, func() { p.Publish(context.Background(), Event{Type: HelperAdded}) })
}

type fakeChannel struct {
	key string
	msg amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.key, f.msg = key, msg
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQPPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, queue: "support.reports", log: quiet}
	p.Publish(context.Background(), ForHelper(HelperAdded, "bob", "admin"))

	assert.Equal(t, "support.reports", ch.key)
	assert.Equal(t, HelperAdded, ch.msg.Type)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.NoError(t, p.Close())
}
