package fishnerf

import "sync"

// shardLocks guards concurrent gradient scatters into a shared flat buffer
// without one lock per element. NumShards must be a power of two.
type shardLocks struct{ mu [NumShards]sync.Mutex }

func (sl *shardLocks) lock(idx int)   { sl.mu[idx&(NumShards-1)].Lock() }
func (sl *shardLocks) unlock(idx int) { sl.mu[idx&(NumShards-1)].Unlock() }
