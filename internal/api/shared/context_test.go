package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.Empty(t, GetTraceID(ctx), "parent context must be unchanged")
}

func TestGetTraceID_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestGenerateTraceID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := generateTraceID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestPrincipal(t *testing.T) {
	ctx := context.Background()
	_, ok := UserID(ctx)
	assert.False(t, ok)
	assert.Empty(t, Role(ctx))

	userID := uuid.New()
	ctx = WithPrincipal(ctx, userID, "authenticated")
	got, ok := UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, userID, got)
	assert.Equal(t, "authenticated", Role(ctx))

	serviceCtx := WithPrincipal(context.Background(), uuid.Nil, "service_role")
	_, ok = UserID(serviceCtx)
	assert.False(t, ok, "nil subject is not a user")
	assert.Equal(t, "service_role", Role(serviceCtx))
}
