package statemachine

import (
	"context"
	"fmt"

	"github.com/zeebo/xxh3"
)

// KeyedLocker hands out mutual exclusion per key. Keys are spread over a fixed number
// of shards, so two different keys may share a lock; the same key always does.
type KeyedLocker struct {
	shards []chan struct{}
}

// NewKeyedLocker creates a locker with the given number of shards.
func NewKeyedLocker(shards int) (*KeyedLocker, error) {
	if shards < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrLockerShardsRequired, shards)
	}

	locker := &KeyedLocker{
		shards: make([]chan struct{}, shards),
	}

	for i := range locker.shards {
		locker.shards[i] = make(chan struct{}, 1)
	}

	return locker, nil
}

func (l *KeyedLocker) shard(key string) chan struct{} {
	return l.shards[xxh3.HashString(key)%uint64(len(l.shards))]
}

// Lock blocks until the lock for key is held or ctx is done. A ctx that is
// already done never acquires the lock, even when it is free.
// The returned function releases the lock and must be called exactly once.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shard := l.shard(key)

	select {
	case shard <- struct{}{}:
		return func() { <-shard }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LockingEngine serializes transitions per object. The key function identifies the
// object; concurrent calls for the same key run one after another.
type LockingEngine[T StateAware] struct {
	engine *Engine[T]
	locker *KeyedLocker
	key    func(obj T) string
}

// WithLocking wraps an engine with per-object mutual exclusion.
func WithLocking[T StateAware](engine *Engine[T], locker *KeyedLocker, key func(obj T) string) *LockingEngine[T] {
	return &LockingEngine[T]{
		engine: engine,
		locker: locker,
		key:    key,
	}
}

// Engine returns the wrapped engine.
func (e *LockingEngine[T]) Engine() *Engine[T] {
	return e.engine
}

// Transition waits for obj's lock, then runs Engine.Transition while holding it.
// Only the wait honors ctx cancellation; once started the transition runs to completion.
func (e *LockingEngine[T]) Transition(ctx context.Context, obj T, name string) error {
	unlock, err := e.locker.Lock(ctx, e.key(obj))
	if err != nil {
		return err
	}

	defer unlock()

	return e.engine.Transition(ctx, obj, name)
}
