package tcr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	first := &ConnectionPool{id: "first"}
	second := &ConnectionPool{id: "second"}

	registry.Register(first)
	registry.Register(second)
	assert.Equal(t, 2, registry.Count())
	assert.ElementsMatch(t, []string{"first", "second"}, registry.IDs())

	found, ok := registry.Lookup("first")
	require.True(t, ok)
	assert.Same(t, first, found)

	registry.Unregister("first")
	_, ok = registry.Lookup("first")
	assert.False(t, ok)
	assert.Equal(t, 1, registry.Count())
}

func TestPoolsRegisterThemselves(t *testing.T) {
	pool, err := NewConnectionPoolWithClient(&manualLoop{}, &fakeClient{}, &PoolConfig{Host: "localhost", Port: 6379}, 1)
	require.NoError(t, err)

	found, ok := DefaultRegistry.Lookup(pool.ID())
	require.True(t, ok)
	assert.Same(t, pool, found)

	pool.Destroy()
	_, ok = DefaultRegistry.Lookup(pool.ID())
	assert.False(t, ok)
}
