package idempotency

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMarkAndCheck(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	done, err := store.HasProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.MarkProcessed(ctx, "evt-1"))

	done, err = store.HasProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = store.HasProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("evt-%d", n)
			require.NoError(t, store.MarkProcessed(ctx, id))
			done, err := store.HasProcessed(ctx, id)
			require.NoError(t, err)
			assert.True(t, done)
		}(i)
	}
	wg.Wait()
}
