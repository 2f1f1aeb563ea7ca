package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
)

func TestInMemoryEventEmitter(t *testing.T) {
	log, _ := logger.NewTestLogger()

	newEvent := func(t *testing.T) *Event {
		t.Helper()
		event, err := NewEvent(TypeReminderCreated, map[string]string{"key": "value"}, time.Now())
		require.NoError(t, err)
		return event
	}

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)
		assert.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t)))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := newEvent(t)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)
		failing := &MockEventHandler{HandlerError: errors.New("first")}
		alsoFailing := &MockEventHandler{HandlerError: errors.New("second")}
		success := &MockEventHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(alsoFailing)
		emitter.RegisterHandler(success)

		err := emitter.EmitEvent(context.Background(), newEvent(t))
		require.Error(t, err)
		assert.Equal(t, "first", err.Error())
		assert.Equal(t, 1, failing.HandledCount)
		assert.Equal(t, 1, alsoFailing.HandledCount)
		assert.Equal(t, 1, success.HandledCount)
	})

	t.Run("failure is logged", func(t *testing.T) {
		log, buf := logger.NewTestLogger()
		emitter := NewInMemoryEventEmitter(log)
		emitter.RegisterHandler(&MockEventHandler{HandlerError: errors.New("boom")})

		require.Error(t, emitter.EmitEvent(context.Background(), newEvent(t)))

		var found bool
		for _, entry := range buf.Entries() {
			if entry["msg"] == "handler failed to process event" {
				found = true
				assert.Equal(t, "boom", entry["error"])
				assert.Equal(t, "event_emitter", entry["component"])
			}
		}
		assert.True(t, found, "expected failure log entry")
	})
}
