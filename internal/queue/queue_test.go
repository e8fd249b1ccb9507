package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, NewMessage(TypeUpdate, []byte(`{"update_id":1}`))))
	require.NoError(t, q.Publish(ctx, Message{Type: TypeUpdate, Body: []byte(`{"update_id":2}`)}))

	first := <-msgs
	second := <-msgs
	assert.JSONEq(t, `{"update_id":1}`, string(first.Body))
	assert.JSONEq(t, `{"update_id":2}`, string(second.Body))
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestInMemoryConsumeClosesOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), NewMessage(TypeUpdate, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, NewMessage(TypeUpdate, nil)), context.DeadlineExceeded)
}
