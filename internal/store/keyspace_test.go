package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	ks := New()
	_, existed := ks.Set("k", Record{Value: []byte("v1")})
	assert.False(t, existed)

	rec, ok := ks.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), rec.Value)

	prev, existed := ks.Set("k", Record{Value: []byte("v2")})
	assert.True(t, existed)
	assert.Equal(t, []byte("v1"), prev.Value)
}

func TestExistsAndDel(t *testing.T) {
	ks := New()
	assert.False(t, ks.Exists("k"))
	ks.Set("k", Record{Value: []byte("v")})
	assert.True(t, ks.Exists("k"))
	assert.True(t, ks.Del("k"))
	assert.False(t, ks.Exists("k"))
	assert.False(t, ks.Del("k"))
}

func TestLazyExpiryOnGet(t *testing.T) {
	ks := New()
	ks.Set("k", Record{Value: []byte("v"), HasExpiry: true, CreatedAt: time.Now(), TTL: 50 * time.Millisecond})

	rec, ok := ks.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), rec.Value)

	time.Sleep(60 * time.Millisecond)

	_, ok = ks.Get("k")
	assert.False(t, ok)
	assert.False(t, ks.Exists("k"))
}

func TestConditionalSetMatrix(t *testing.T) {
	t.Run("NX prev=Some", func(t *testing.T) {
		ks := New()
		ks.Set("k", Record{Value: []byte("old")})
		_, hadPrev, applied := ks.ConditionalSet("k", Record{Value: []byte("new")}, true, false)
		assert.True(t, hadPrev)
		assert.False(t, applied)
		rec, _ := ks.Get("k")
		assert.Equal(t, []byte("old"), rec.Value)
	})

	t.Run("NX prev=None inserts", func(t *testing.T) {
		ks := New()
		prev, hadPrev, applied := ks.ConditionalSet("k", Record{Value: []byte("new")}, true, false)
		assert.False(t, hadPrev)
		assert.True(t, applied)
		assert.Empty(t, prev.Value)
		rec, ok := ks.Get("k")
		require.True(t, ok)
		assert.Equal(t, []byte("new"), rec.Value)
	})

	t.Run("XX prev=None no-op", func(t *testing.T) {
		ks := New()
		_, hadPrev, applied := ks.ConditionalSet("k", Record{Value: []byte("new")}, false, true)
		assert.False(t, hadPrev)
		assert.False(t, applied)
		assert.False(t, ks.Exists("k"))
	})

	t.Run("XX prev=Some overwrites", func(t *testing.T) {
		ks := New()
		ks.Set("k", Record{Value: []byte("old")})
		prev, hadPrev, applied := ks.ConditionalSet("k", Record{Value: []byte("new")}, false, true)
		assert.True(t, hadPrev)
		assert.True(t, applied)
		assert.Equal(t, []byte("old"), prev.Value)
		rec, _ := ks.Get("k")
		assert.Equal(t, []byte("new"), rec.Value)
	})

	t.Run("plain insert", func(t *testing.T) {
		ks := New()
		_, hadPrev, applied := ks.ConditionalSet("k", Record{Value: []byte("v")}, false, false)
		assert.False(t, hadPrev)
		assert.True(t, applied)
	})

	t.Run("expired previous counts as absent", func(t *testing.T) {
		ks := New()
		ks.Set("k", Record{Value: []byte("old"), HasExpiry: true, CreatedAt: time.Now().Add(-time.Hour), TTL: time.Second})
		_, hadPrev, applied := ks.ConditionalSet("k", Record{Value: []byte("new")}, true, false)
		assert.False(t, hadPrev)
		assert.True(t, applied)
	})
}
