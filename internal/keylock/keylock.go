// Package keylock serializes work on the same key without a global lock.
package keylock

import (
	"hash/fnv"
	"sync"
)

const shards = 64

// Locks is a fixed set of mutexes; a key always maps to the same one.
// Distinct keys may share a shard, which only costs contention.
type Locks struct {
	mu [shards]sync.Mutex
}

// Lock acquires the mutex for key and returns its release func.
func (l *Locks) Lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &l.mu[h.Sum32()%shards]
	m.Lock()
	return m.Unlock
}
