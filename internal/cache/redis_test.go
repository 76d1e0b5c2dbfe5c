package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRedis()
	r := NewRedis(fr, "compare:", zerolog.Nop())

	_, ok := r.Get(ctx, "fp")
	assert.False(t, ok)

	r.Set(ctx, "fp", Payload{Mode: "compare", ComparisonKey: "a-vs-b", Content: "body"}, 10*time.Minute)
	assert.Equal(t, 10*time.Minute, fr.ttls["compare:fp"])

	p, ok := r.Get(ctx, "fp")
	require.True(t, ok)
	assert.Equal(t, "a-vs-b", p.ComparisonKey)
	assert.Equal(t, "body", p.Content)
}

func TestRedis_ErrorsDegradeToMiss(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRedis()
	fr.data["p:bad"] = "{not json"
	r := NewRedis(fr, "p:", zerolog.Nop())

	_, ok := r.Get(ctx, "bad")
	assert.False(t, ok)

	fr.getErr = errors.New("connection refused")
	_, ok = r.Get(ctx, "anything")
	assert.False(t, ok)

	fr.setErr = errors.New("READONLY")
	assert.NotPanics(t, func() { r.Set(ctx, "x", Payload{}, time.Minute) })
}

func TestRedis_NonPositiveTTL(t *testing.T) {
	fr := newFakeRedis()
	NewRedis(fr, "", zerolog.Nop()).Set(context.Background(), "k", Payload{}, 0)
	assert.Empty(t, fr.data)
}
