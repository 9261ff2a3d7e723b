// Package localq buffers inbound bus messages for synchronous readers.
//
// The bus loop pushes, api handler threads drain. Each named queue is an
// unbounded FIFO with its own lock, there is no global lock across names.
package localq

import (
	"container/list"
	"sync"
)

// Bridge is a concurrent mapping of name -> FIFO, queues are created lazily on
// first access and live for the lifetime of the Bridge.
type Bridge[T any] struct {
	queues sync.Map // queue name -> *fifo[T]
}

func NewBridge[T any]() *Bridge[T] {
	return &Bridge[T]{}
}

type fifo[T any] struct {
	mu sync.Mutex
	l  *list.List
}

// Append msg to the named queue, never blocks, never drops.
func (b *Bridge[T]) Push(name string, msg T) {
	q := b.getOrCreate(name)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.l.PushBack(msg)
}

// Atomically remove and return every buffered message for name, oldest first.
//
// Does not wait for future messages, an empty result means nothing pending.
func (b *Bridge[T]) DrainAll(name string) []T {
	q := b.getOrCreate(name)
	q.mu.Lock()
	defer q.mu.Unlock()

	msgs := make([]T, 0, q.l.Len())
	for q.l.Len() > 0 {
		f := q.l.Front()
		msgs = append(msgs, f.Value.(T))
		q.l.Remove(f)
	}
	return msgs
}

// Count of currently buffered messages for name.
func (b *Bridge[T]) Len(name string) int {
	q := b.getOrCreate(name)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}

func (b *Bridge[T]) getOrCreate(name string) *fifo[T] {
	if v, ok := b.queues.Load(name); ok {
		return v.(*fifo[T])
	}
	v, _ := b.queues.LoadOrStore(name, &fifo[T]{l: list.New()})
	return v.(*fifo[T])
}
