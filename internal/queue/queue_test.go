package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeSender struct {
	got []PushBatchMessage
}

func (s *fakeSender) Send(_ context.Context, msg PushBatchMessage) error {
	s.got = append(s.got, msg)
	return nil
}

func TestProducer_Dispatch(t *testing.T) {
	w := &fakeWriter{}
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &Producer{w: w, now: func() time.Time { return fixed }}

	if err := p.Dispatch(context.Background(), 12, []int64{1, 2}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "12" {
		t.Fatalf("expected key 12, got %q", w.msgs[0].Key)
	}
	var msg PushBatchMessage
	if err := json.Unmarshal(w.msgs[0].Value, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.PromoID != 12 || len(msg.UserIDs) != 2 || msg.SentAt != fixed.Unix() {
		t.Fatalf("unexpected message %+v", msg)
	}

	if err := p.Dispatch(context.Background(), 12, nil); err == nil {
		t.Fatalf("expected empty batch to be rejected")
	}

	w.err = errors.New("broker down")
	if err := p.Dispatch(context.Background(), 12, []int64{3}); err == nil {
		t.Fatalf("expected write error to surface")
	}
}

func TestConsumer_HandleMessage(t *testing.T) {
	s := &fakeSender{}
	c := &Consumer{sender: s}
	ctx := context.Background()

	if err := c.handleMessage(ctx, kafka.Message{Value: []byte(`{"promo_id":3,"user_ids":[1,2]}`)}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(s.got) != 1 || s.got[0].PromoID != 3 {
		t.Fatalf("expected message delivered, got %+v", s.got)
	}

	if err := c.handleMessage(ctx, kafka.Message{Value: []byte(`not json`)}); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := c.handleMessage(ctx, kafka.Message{Value: []byte(`{"promo_id":0,"user_ids":[1]}`)}); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(s.got) != 1 {
		t.Fatalf("expected bad messages skipped, got %d deliveries", len(s.got))
	}
}
