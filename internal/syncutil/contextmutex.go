package syncutil

import (
	"context"
	"hash/fnv"
	"sync"
)

// ContextShardedMutex is the context-aware variant of ShardedMutex. Shards
// are channel-based, so a caller waiting behind a slow lock holder (a
// monitoring tick holding a warning's lock through provider calls) can bail
// out when its deadline expires instead of blocking unbounded.
type ContextShardedMutex struct {
	shards [256]chanMutex
	once   sync.Once
}

// chanMutex holds its permit in a 1-buffered channel so acquisition can be
// selected against ctx.Done().
type chanMutex struct {
	ch chan struct{}
}

func (m *ContextShardedMutex) init() {
	m.once.Do(func() {
		for i := range m.shards {
			m.shards[i].ch = make(chan struct{}, 1)
			m.shards[i].ch <- struct{}{} // start unlocked
		}
	})
}

// LockContext acquires the shard for key and returns its unlock function,
// or ctx.Err() if the context ends first. The zero value is ready to use.
func (m *ContextShardedMutex) LockContext(ctx context.Context, key string) (func(), error) {
	m.init()
	shard := &m.shards[m.shardIdx(key)]

	select {
	case <-shard.ch:
		return func() { shard.ch <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *ContextShardedMutex) shardIdx(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % uint32(len(m.shards))
}
