package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestPubSub_StatusRoundTrip(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(rdb)
	subscriber := NewSubscriber(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *StatusMessage, 1)
	ready := make(chan struct{})

	go func() {
		close(ready)
		subscriber.Subscribe(ctx, func(msg *StatusMessage) {
			received <- msg
		})
	}()

	<-ready
	// 等订阅真正建立
	time.Sleep(50 * time.Millisecond)

	err := publisher.PublishStatus(ctx, &StatusMessage{
		UserID:     7,
		AnalysisID: 11,
		JobNumber:  42,
		Status:     3,
		Message:    "done",
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "analysis_status", msg.Type)
		assert.Equal(t, int64(7), msg.UserID)
		assert.Equal(t, int64(11), msg.AnalysisID)
		assert.Equal(t, int64(42), msg.JobNumber)
		assert.Equal(t, 3, msg.Status)
		assert.Equal(t, "done", msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status message")
	}
}

func TestPubSub_SubscribeStopsOnContextCancel(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	subscriber := NewSubscriber(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- subscriber.Subscribe(ctx, func(*StatusMessage) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop after context cancel")
	}
}

func TestPubSub_IgnoresMalformedPayload(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(rdb)
	subscriber := NewSubscriber(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *StatusMessage, 1)
	go func() {
		subscriber.Subscribe(ctx, func(msg *StatusMessage) {
			received <- msg
		})
	}()

	time.Sleep(50 * time.Millisecond)

	// 非 JSON 内容被跳过，后续消息仍能送达
	require.NoError(t, rdb.Publish(ctx, ChannelAnalysisStatus, "not-json").Err())
	require.NoError(t, publisher.PublishStatus(ctx, &StatusMessage{UserID: 1, AnalysisID: 2}))

	select {
	case msg := <-received:
		assert.Equal(t, int64(1), msg.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for valid message")
	}
}
