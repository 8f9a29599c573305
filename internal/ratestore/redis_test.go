package ratestore

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ fiber.Storage = (*Redis)(nil)

func TestEmptyKeysNeverReachRedis(t *testing.T) {
	// Nothing listens here; any network call would fail.
	r := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	defer r.Close()

	val, err := r.Get("")
	require.NoError(t, err)
	assert.Nil(t, val)
	assert.NoError(t, r.Set("", []byte("1"), 0))
	assert.NoError(t, r.Set("k", nil, 0))
	assert.NoError(t, r.Delete(""))
}
