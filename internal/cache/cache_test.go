package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelsec/graphaudit/internal/config"
)

func TestNewWithoutAddrDisablesCaching(t *testing.T) {
	c, err := New(context.Background(), config.CacheConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache

	_, ok := c.GetIntrospection(context.Background(), Key("t", ""))
	assert.False(t, ok)

	c.SetIntrospection(context.Background(), Key("t", ""), map[string]interface{}{"a": 1})
	assert.NoError(t, c.Close())
}

func TestKey(t *testing.T) {
	k1 := Key("https://a.example/graphql", "")
	k2 := Key("https://b.example/graphql", "")
	k3 := Key("https://a.example/graphql", `{"Authorization":"Bearer x"}`)

	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3, "headers must participate in the key")
	assert.Equal(t, k1, Key("https://a.example/graphql", ""))
	assert.Contains(t, k1, "graphaudit:introspection:")
}
