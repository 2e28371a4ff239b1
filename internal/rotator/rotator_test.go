package rotator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProviderKeysEfficientIdempotence(t *testing.T) {
	r := New()

	r.UpdateProviderKeysEfficient("g/alias-z", 7, "https://api.x", "m", []string{"k1", "k2"})
	require.Equal(t, 2, r.PoolSize("g/alias-z"))

	k, ok := r.NextGlobalKey("g/alias-z")
	require.True(t, ok)
	assert.Equal(t, "k1", k.Key)

	// Identical call again: pool must be unchanged (re-sorted identically).
	r.UpdateProviderKeysEfficient("g/alias-z", 7, "https://api.x", "m", []string{"k1", "k2"})
	assert.Equal(t, 2, r.PoolSize("g/alias-z"))

	// Empty keys removes the entry; pool becomes empty.
	r.UpdateProviderKeysEfficient("g/alias-z", 7, "https://api.x", "m", nil)
	assert.Equal(t, 0, r.PoolSize("g/alias-z"))

	_, ok = r.NextGlobalKey("g/alias-z")
	assert.False(t, ok)
}

func TestUpdateProviderKeysEfficientProviderZeroIsNoop(t *testing.T) {
	r := New()
	r.UpdateProviderKeysEfficient("g/alias", 0, "https://api.x", "m", []string{"k1"})
	assert.Equal(t, 0, r.PoolSize("g/alias"))
}

func TestGlobalPoolIsSortedUnionAcrossProviders(t *testing.T) {
	r := New()
	r.UpdateProviderKeysEfficient("g/alias", 1, "https://a", "m1", []string{"zeta", "alpha"})
	r.UpdateProviderKeysEfficient("g/alias", 2, "https://b", "m2", []string{"beta"})

	require.Equal(t, 3, r.PoolSize("g/alias"))

	var seen []string
	for i := 0; i < 3; i++ {
		k, ok := r.NextGlobalKey("g/alias")
		require.True(t, ok)
		seen = append(seen, k.Key)
	}
	assert.Equal(t, []string{"alpha", "beta", "zeta"}, seen)
}

func TestNextGlobalKeyRoundRobinDistributesEvenly(t *testing.T) {
	r := New()
	r.UpdateProviderKeysEfficient("g/alias", 1, "https://a", "m", []string{"k1", "k2", "k3"})

	counts := map[string]int{}
	const n = 3
	for i := 0; i < 10*n; i++ {
		k, ok := r.NextGlobalKey("g/alias")
		require.True(t, ok)
		counts[k.Key]++
	}
	for _, key := range []string{"k1", "k2", "k3"} {
		assert.Equal(t, 10, counts[key])
	}
}

func TestNextTargetIndexRoundRobin(t *testing.T) {
	r := New()
	var got []int
	for i := 0; i < 5; i++ {
		got = append(got, r.NextTargetIndex("g/alias", 3))
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1}, got)
}

func TestNextTargetIndexZeroTargets(t *testing.T) {
	r := New()
	assert.Equal(t, 0, r.NextTargetIndex("g/alias", 0))
}
