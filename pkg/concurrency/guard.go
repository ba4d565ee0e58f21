// Package concurrency rejects overlapping work instead of queueing it.
package concurrency

import (
	"context"
	"errors"
	"sync"
)

var ErrBusy = errors.New("operation already in progress")

// Guard runs at most one task at a time; overlapping calls get ErrBusy.
type Guard struct {
	mu   sync.Mutex
	busy bool
}

func NewGuard() *Guard {
	return &Guard{}
}

func (g *Guard) Execute(task func() error) error {
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// ExecuteContext is Execute for tasks that take a context. A done ctx is
// reported without running the task.
func (g *Guard) ExecuteContext(ctx context.Context, task func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.Execute(func() error { return task(ctx) })
}

// Busy reports whether a task is running.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

func (g *Guard) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

func (g *Guard) release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// KeyedGuard holds one Guard per key, so work on different keys may overlap.
type KeyedGuard struct {
	mu     sync.Mutex
	guards map[string]*Guard
}

func NewKeyedGuard() *KeyedGuard {
	return &KeyedGuard{guards: make(map[string]*Guard)}
}

func (k *KeyedGuard) Guard(key string) *Guard {
	k.mu.Lock()
	defer k.mu.Unlock()
	g, ok := k.guards[key]
	if !ok {
		g = NewGuard()
		k.guards[key] = g
	}
	return g
}

func (k *KeyedGuard) ExecuteContext(ctx context.Context, key string, task func(context.Context) error) error {
	return k.Guard(key).ExecuteContext(ctx, task)
}
