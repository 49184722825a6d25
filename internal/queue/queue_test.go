package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(0)
	require.NoError(t, q.Push(&Task{ID: "low-1"}))
	require.NoError(t, q.Push(&Task{ID: "high", Priority: 5}))
	require.NoError(t, q.Push(&Task{ID: "low-2"}))
	assert.Equal(t, 3, q.Size())

	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		task, err := q.Pop(ctx)
		require.NoError(t, err)
		got = append(got, task.ID)
	}

	assert.Equal(t, []string{"high", "low-1", "low-2"}, got)
	assert.Equal(t, 0, q.Size())
}

func TestInMemoryQueue_PushSetsCreatedAt(t *testing.T) {
	q := NewInMemoryQueue(0)
	task := &Task{ID: "a"}
	require.NoError(t, q.Push(task))
	assert.False(t, task.CreatedAt.IsZero())
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(1)
	require.NoError(t, q.Push(&Task{ID: "a"}))
	assert.ErrorIs(t, q.Push(&Task{ID: "b"}), ErrQueueFull)
}

func TestInMemoryQueue_PopWaitsForPush(t *testing.T) {
	q := NewInMemoryQueue(0)
	result := make(chan *Task, 1)

	go func() {
		task, err := q.Pop(context.Background())
		if err == nil {
			result <- task
		}
		close(result)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push(&Task{ID: "late"}))

	select {
	case task := <-result:
		require.NotNil(t, task)
		assert.Equal(t, "late", task.ID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestInMemoryQueue_PopHonoursContext(t *testing.T) {
	q := NewInMemoryQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	task, err := q.Pop(ctx)
	assert.Nil(t, task)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryQueue_Close(t *testing.T) {
	t.Run("drains before reporting closed", func(t *testing.T) {
		q := NewInMemoryQueue(0)
		require.NoError(t, q.Push(&Task{ID: "a"}))
		require.NoError(t, q.Close())
		require.NoError(t, q.Close())

		task, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a", task.ID)

		_, err = q.Pop(context.Background())
		assert.ErrorIs(t, err, ErrQueueClosed)
		assert.ErrorIs(t, q.Push(&Task{ID: "b"}), ErrQueueClosed)
	})

	t.Run("wakes blocked pop", func(t *testing.T) {
		q := NewInMemoryQueue(0)
		errs := make(chan error, 1)
		go func() {
			_, err := q.Pop(context.Background())
			errs <- err
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, q.Close())

		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrQueueClosed)
		case <-time.After(time.Second):
			t.Fatal("Pop did not return after Close")
		}
	})
}
