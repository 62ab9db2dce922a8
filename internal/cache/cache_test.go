package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregraph/taskgraph/contracts"
)

func TestCache_GetPutRoundTrip(t *testing.T) {
	c := New(nil)
	c.Put("fp1", contracts.Mapping{"answer": "hi"}, 0)
	out, ok := c.Get("fp1")
	require.True(t, ok)
	require.Equal(t, "hi", out["answer"])
}

func TestCache_TTLExpiry(t *testing.T) {
	now := int64(1000)
	clock := func() int64 { return now }
	c := New(clock)

	c.Put("fp1", contracts.Mapping{"answer": "hi"}, 5) // 5s TTL
	_, ok := c.Get("fp1")
	require.True(t, ok)

	now += 4000
	_, ok = c.Get("fp1")
	require.True(t, ok)

	now += 2000 // total 6s elapsed, past the 5s TTL
	_, ok = c.Get("fp1")
	require.False(t, ok)
}

func TestCache_NoTTLNeverExpires(t *testing.T) {
	now := int64(0)
	clock := func() int64 { return now }
	c := New(clock)
	c.Put("fp1", contracts.Mapping{"x": 1.0}, 0)
	now += 1_000_000_000
	_, ok := c.Get("fp1")
	require.True(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(nil)
	c.Configure(2)

	c.Put("a", contracts.Mapping{"v": "a"}, 0)
	c.Put("b", contracts.Mapping{"v": "b"}, 0)

	// Touch "a" so "b" becomes least-recently-used.
	_, _ = c.Get("a")

	c.Put("c", contracts.Mapping{"v": "c"}, 0)

	_, ok := c.Get("b")
	require.False(t, ok, "b should have been evicted as LRU")

	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := New(nil)
	c.Put("a", contracts.Mapping{"v": "a"}, 0)
	c.Clear()
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestFingerprint_StableUnderKeyOrder(t *testing.T) {
	a := Fingerprint("classify", contracts.Mapping{"x": 1.0, "y": 2.0}, nil)
	b := Fingerprint("classify", contracts.Mapping{"y": 2.0, "x": 1.0}, nil)
	require.Equal(t, a, b)
}

func TestFingerprint_DiffersOnInput(t *testing.T) {
	a := Fingerprint("classify", contracts.Mapping{"x": 1.0}, nil)
	b := Fingerprint("classify", contracts.Mapping{"x": 2.0}, nil)
	require.NotEqual(t, a, b)
}
