package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardRange(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)
	_, err = New(maxShard + 1)
	assert.Error(t, err)
	_, err = New(maxShard)
	assert.NoError(t, err)
}

func TestIDsIncrease(t *testing.T) {
	g, err := New(1)
	require.NoError(t, err)

	var prev int64
	for i := 0; i < 10000; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestIDsUniqueUnderConcurrency(t *testing.T) {
	g, err := New(2)
	require.NoError(t, err)

	const workers = 8
	const perWorker = 2000

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				id, err := g.NextID()
				if err != nil {
					t.Error(err)
					return
				}
				ids = append(ids, id)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}

func TestShardsDoNotCollide(t *testing.T) {
	a, err := New(1)
	require.NoError(t, err)
	b, err := New(2)
	require.NoError(t, err)

	idA, err := a.NextID()
	require.NoError(t, err)
	idB, err := b.NextID()
	require.NoError(t, err)

	assert.NotEqual(t, (idA>>sequenceBits)&maxShard, (idB>>sequenceBits)&maxShard)
}

func TestShardFromEnv(t *testing.T) {
	t.Setenv(ShardEnv, "7")
	assert.Equal(t, 7, ShardFromEnv())

	t.Setenv(ShardEnv, "")
	assert.Equal(t, 0, ShardFromEnv())

	t.Setenv(ShardEnv, "notanumber")
	assert.Equal(t, 0, ShardFromEnv())

	t.Setenv(ShardEnv, "99999")
	assert.Equal(t, 0, ShardFromEnv())
}
