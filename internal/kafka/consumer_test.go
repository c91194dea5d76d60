package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	ch := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeReader{msgs: ch}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) commits() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.committed...)
}

func offsets(msgs []kafka.Message, partition int) []int64 {
	var out []int64
	for _, m := range msgs {
		if m.Partition == partition {
			out = append(out, m.Offset)
		}
	}
	return out
}

func TestConsumer_RetriesFailedMessageBeforeCommittingLaterOnes(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Partition: 0, Offset: 10},
		kafka.Message{Partition: 0, Offset: 11},
		kafka.Message{Partition: 1, Offset: 5},
	)
	c := newConsumer(r, 2)
	c.backoff = time.Millisecond

	var (
		mu       sync.Mutex
		attempts = map[int64]int{}
		handled  []int64
	)
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[m.Offset]++
		if m.Offset == 10 && attempts[m.Offset] < 3 {
			return errors.New("redis down")
		}
		if m.Partition == 0 {
			handled = append(handled, m.Offset)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{10, 11}, offsets(r.commits(), 0))
	assert.Equal(t, []int64{5}, offsets(r.commits(), 1))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts[10])
	assert.Equal(t, 1, attempts[11])
	assert.Equal(t, []int64{10, 11}, handled)
}

func TestConsumer_LeavesMessageUncommittedOnShutdown(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Partition: 0, Offset: 1},
		kafka.Message{Partition: 0, Offset: 2},
	)
	c := newConsumer(r, 1)
	c.backoff = time.Millisecond

	called := make(chan struct{}, 16)
	h := func(context.Context, kafka.Message) error {
		select {
		case called <- struct{}{}:
		default:
		}
		return errors.New("always failing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()

	<-called
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.commits())
}
