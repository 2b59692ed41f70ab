package services

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultLockShards = 64

// KeyedLock serialises work per key. Keys hash onto shards that each own a
// map of reference counted mutexes; an entry is removed once no goroutine
// holds or waits for it.
type KeyedLock struct {
	shards []lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	held chan struct{}
	refs int
}

// NewKeyedLock returns a KeyedLock with the given shard count.
func NewKeyedLock(shards int) *KeyedLock {
	if shards <= 0 {
		shards = defaultLockShards
	}
	kl := &KeyedLock{shards: make([]lockShard, shards)}
	for i := range kl.shards {
		kl.shards[i].locks = make(map[string]*lockEntry)
	}
	return kl
}

// Lock acquires the lock for key and returns the function that releases it.
// It gives up with ctx.Err() when ctx is done before the lock is acquired.
func (k *KeyedLock) Lock(ctx context.Context, key string) (unlock func(), err error) {
	shard := &k.shards[xxhash.Sum64String(key)%uint64(len(k.shards))]

	shard.mu.Lock()
	entry, ok := shard.locks[key]
	if !ok {
		entry = &lockEntry{held: make(chan struct{}, 1)}
		shard.locks[key] = entry
	}
	entry.refs++
	shard.mu.Unlock()

	release := func() {
		shard.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(shard.locks, key)
		}
		shard.mu.Unlock()
	}

	select {
	case entry.held <- struct{}{}:
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.held
			release()
		})
	}, nil
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedLock) Len() int {
	total := 0
	for i := range k.shards {
		k.shards[i].mu.Lock()
		total += len(k.shards[i].locks)
		k.shards[i].mu.Unlock()
	}
	return total
}
