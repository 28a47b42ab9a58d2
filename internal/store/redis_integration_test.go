//go:build redis_integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	r, err := NewRedis(url)
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Ping(context.Background()))

	key := Key("test", []byte(time.Now().String()))
	_, err = r.Get(context.Background(), key)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, r.Put(context.Background(), key, []byte("v"), time.Minute))
	got, err := r.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}
