package tablekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()

	p := &Principal{ID: 1, Name: "pat"}
	ctx = WithPrincipal(ctx, p)
	ctx = WithOperation(ctx, "task.recordCreate")
	ctx = WithIPAddress(ctx, "10.0.0.1")
	ctx = WithUserAgent(ctx, "tests/1.0")
	ctx = WithRequestID(ctx, "req-123")

	assert.Equal(t, p, GetPrincipal(ctx))
	assert.Equal(t, "task.recordCreate", GetOperation(ctx))
	assert.Equal(t, "10.0.0.1", GetIPAddress(ctx))
	assert.Equal(t, "tests/1.0", GetUserAgent(ctx))
	assert.Equal(t, "req-123", GetRequestID(ctx))

	ac := GetAuditContext(ctx)
	assert.Equal(t, "task.recordCreate", ac.Operation)
	assert.Equal(t, "req-123", ac.RequestID)
}

func TestContextEmptyDefaults(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, GetPrincipal(ctx))
	assert.Empty(t, GetOperation(ctx))
	assert.Empty(t, GetIPAddress(ctx))
	assert.Empty(t, GetUserAgent(ctx))
	assert.Empty(t, GetRequestID(ctx))
}

func TestEnsureRequestID(t *testing.T) {
	ctx := EnsureRequestID(context.Background())
	generated := GetRequestID(ctx)
	assert.NotEmpty(t, generated)

	// An existing id is preserved.
	again := EnsureRequestID(ctx)
	assert.Equal(t, generated, GetRequestID(again))
}
