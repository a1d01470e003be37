package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	c.Put("tokens", []string{"USDC", "WETH"}, time.Minute)

	var got []string
	require.True(t, c.Get("tokens", &got))
	assert.Equal(t, []string{"USDC", "WETH"}, got)
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Put("k", "v", time.Minute)

	var got string
	require.True(t, c.Get("k", &got))

	now = now.Add(2 * time.Minute)
	assert.False(t, c.Get("k", &got))
}

func TestCachePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	c1, err := New(dir)
	require.NoError(t, err)
	c1.Put("chains", []int64{1, 137}, time.Hour)

	c2, err := New(dir)
	require.NoError(t, err)
	var got []int64
	require.True(t, c2.Get("chains", &got))
	assert.Equal(t, []int64{1, 137}, got)
}

func TestCacheDiscardsOldSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache-v3.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"entries":{"k":{"data":"\"v\"","stored_at":"2024-01-01T00:00:00Z","ttl":0}}}`), 0600))

	c, err := New(dir)
	require.NoError(t, err)
	var got string
	assert.False(t, c.Get("k", &got))
}

func TestCacheCorruptFileRecovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache-v3.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	c, err := New(dir)
	require.NoError(t, err)
	c.Put("k", "v", time.Minute)
	var got string
	assert.True(t, c.Get("k", &got))
}

func TestNilCacheIsInert(t *testing.T) {
	var c *Cache
	c.Put("k", "v", time.Minute)
	var got string
	assert.False(t, c.Get("k", &got))
	c.Invalidate("k")
	c.Clear()
}
