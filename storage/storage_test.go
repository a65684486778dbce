package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jpycpay/logger"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()

	_, ok, err := kv.Get("jpyc-payment-history")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set("jpyc-payment-history", `[{"id":"1"}]`))
	v, ok, err := kv.Get("jpyc-payment-history")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, v)

	require.NoError(t, kv.Set("jpyc-payment-history", `[]`))
	v, _, err = kv.Get("jpyc-payment-history")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, kv.Remove("jpyc-payment-history"))
	_, ok, err = kv.Get("jpyc-payment-history")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Remove("never-set"))
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	exerciseKV(t, kv)
	assert.ErrorIs(t, kv.Set("", "x"), ErrInvalidKey)
}

func TestFileKV(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	exerciseKV(t, kv)

	require.NoError(t, kv.Set("k", "persisted"))
	reopened, err := NewFileKV(dir)
	require.NoError(t, err)
	v, ok, err := reopened.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must be cleaned up")
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestFileKVRejectsPathKeys(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", filepath.Join("a", "b"), "sp ace"} {
		assert.ErrorIs(t, kv.Set(key, "x"), ErrInvalidKey, key)
		_, _, err := kv.Get(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestRedisKV(t *testing.T) {
	url := os.Getenv("JPYC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("JPYC_TEST_REDIS_URL not set")
	}

	client, err := NewRedisClient(context.Background(), url, logger.NoopLogger{})
	require.NoError(t, err)
	defer client.Close()

	exerciseKV(t, NewRedisKV(client, "jpycpay-test"))
}

func TestRedisKVKeyPrefix(t *testing.T) {
	assert.Equal(t, "device-1:jpyc-payment-history", NewRedisKV(nil, "device-1").key("jpyc-payment-history"))
	assert.Equal(t, "jpyc-payment-history", NewRedisKV(nil, "").key("jpyc-payment-history"))
}
