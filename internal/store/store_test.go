package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIgnoresJSONFormatting(t *testing.T) {
	a := Key("leg", []byte(`{"balloons": [ {"id":"b"} ]}`), []byte(`{"seed":1}`))
	b := Key("leg", []byte("{\"balloons\":[{\"id\":\"b\"}]}\n"), []byte(`{ "seed": 1 }`))
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "leg:"))
	assert.Len(t, strings.TrimPrefix(a, "leg:"), 64)

	assert.NotEqual(t, a, Key("groups", []byte(`{"balloons":[{"id":"b"}]}`), []byte(`{"seed":1}`)))
	assert.NotEqual(t, a, Key("leg", []byte(`{"balloons":[{"id":"b"}]}`), []byte(`{"seed":2}`)))
	// part boundaries matter
	assert.NotEqual(t, Key("k", []byte("ab"), []byte("c")), Key("k", []byte("a"), []byte("bc")))
}

func TestMemoryGetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	_, err := m.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	val := []byte("one")
	require.NoError(t, m.Put(ctx, "a", val, 0))
	val[0] = 'X'
	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	require.NoError(t, m.Put(ctx, "b", []byte("two"), 0))
	require.NoError(t, m.Put(ctx, "c", []byte("three"), 0))
	assert.Equal(t, 2, m.Len())
	_, err = m.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound, "oldest entry evicted")
	require.NoError(t, m.Ping(ctx))
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	now := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	require.NoError(t, m.Put(ctx, "k", []byte("v"), time.Minute))

	_, err := m.Get(ctx, "k")
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.Len())
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis("not-a-url")
	require.Error(t, err)

	r, err := NewRedis("redis://localhost:6379/0")
	require.NoError(t, err)
	require.NoError(t, r.Close())
}
