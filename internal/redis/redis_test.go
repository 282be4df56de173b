package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Options(t *testing.T) {
	cfg := Config{Addr: "cache:6379", Password: "pw", DB: 2}

	opts := cfg.options()
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	assert.Equal(t, defaultPingTimeout, cfg.pingTimeout())
	cfg.PingTimeout = 50 * time.Millisecond
	assert.Equal(t, 50*time.Millisecond, cfg.pingTimeout())
}

func TestNew_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, err := New(ctx, Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.ErrorContains(t, err, "redis.New: ping 127.0.0.1:1")
}
