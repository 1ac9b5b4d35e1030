package tablekit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers in subscription order", func(t *testing.T) {
		bus := NewMemoryBus()
		var seen []string
		require.NoError(t, bus.Subscribe("task.**", func(_ context.Context, _ *Event) error {
			seen = append(seen, "first")
			return nil
		}))
		require.NoError(t, bus.Subscribe("task.recordCreate.after", func(_ context.Context, _ *Event) error {
			seen = append(seen, "second")
			return nil
		}))

		err := bus.Publish(ctx, &Event{Topic: "task.recordCreate.after"})
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, seen)
	})

	t.Run("non-matching handlers are skipped", func(t *testing.T) {
		bus := NewMemoryBus()
		called := false
		require.NoError(t, bus.Subscribe("note.**", func(_ context.Context, _ *Event) error {
			called = true
			return nil
		}))

		require.NoError(t, bus.Publish(ctx, &Event{Topic: "task.recordCreate.after"}))
		assert.False(t, called)
	})

	t.Run("first handler error stops delivery", func(t *testing.T) {
		bus := NewMemoryBus()
		veto := errors.New("not allowed")
		reached := false
		require.NoError(t, bus.Subscribe("task.**", func(_ context.Context, _ *Event) error {
			return veto
		}))
		require.NoError(t, bus.Subscribe("task.**", func(_ context.Context, _ *Event) error {
			reached = true
			return nil
		}))

		err := bus.Publish(ctx, &Event{Topic: "task.recordCreate.before"})
		assert.ErrorIs(t, err, veto)
		assert.False(t, reached)
	})

	t.Run("rejects nil handler and invalid pattern", func(t *testing.T) {
		bus := NewMemoryBus()
		assert.Error(t, bus.Subscribe("task.**", nil))
		assert.Error(t, bus.Subscribe("", func(_ context.Context, _ *Event) error { return nil }))
	})

	t.Run("stamps missing timestamps", func(t *testing.T) {
		bus := NewMemoryBus()
		var got *Event
		require.NoError(t, bus.Subscribe("**", func(_ context.Context, event *Event) error {
			got = event
			return nil
		}))

		require.NoError(t, bus.Publish(ctx, &Event{Topic: "task.recordCreate.after"}))
		require.NotNil(t, got)
		assert.False(t, got.Timestamp.IsZero())
	})
}

func TestEventTopic(t *testing.T) {
	assert.Equal(t, "task.recordCreate.before", eventTopic("task", "recordCreate", "before"))
}
