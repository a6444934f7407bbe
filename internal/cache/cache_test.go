package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheBasicOps(t *testing.T) {
	c := New[string, int]("products")
	require.True(t, c.IsEmpty())

	c.Set("a", 1)
	c.Set("b", 2)
	require.Equal(t, 2, c.Len())

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	require.True(t, c.Contains("b"))
	c.Remove("b")
	require.False(t, c.Contains("b"))

	c.Clear()
	require.True(t, c.IsEmpty())
}

func TestCacheAliasSharesUnderlyingMap(t *testing.T) {
	c := New[string, int]("shared")
	alias := c
	c.Set("x", 42)

	v, ok := alias.Get("x")
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestCacheForEach(t *testing.T) {
	c := New[string, int]("iter")
	c.Set("a", 1)
	c.Set("b", 2)

	seen := make(map[string]int)
	c.ForEach(func(k string, v int) { seen[k] = v })
	require.Equal(t, map[string]int{"a": 1, "b": 2}, seen)
}
