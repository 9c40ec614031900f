// Package queue provides the bounded command buffer between the producer and
// the worker pool.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/tecnicofs"
)

var (
	ErrClosed  = errors.New("queue closed")
	ErrAborted = errors.New("queue aborted")
	ErrFull    = errors.New("queue full")
)

// Source is what workers consume from. Dequeue returns [tecnicofs.Sentinel]
// once nothing more will be produced.
type Source interface {
	Dequeue() tecnicofs.Command
	Abort()
	Len() int
}

// Queue is a bounded FIFO. Producers block while it is full and consumers
// block while it is empty and production is not finished.
type Queue struct {
	ch        chan tecnicofs.Command
	done      chan struct{} // closed by Close
	aborted   chan struct{} // closed by Abort
	closeOnce sync.Once
	abortOnce sync.Once
	closed    atomic.Bool
}

// New creates a queue holding at most capacity commands
func New(capacity int) *Queue {
	return &Queue{
		ch:      make(chan tecnicofs.Command, capacity),
		done:    make(chan struct{}),
		aborted: make(chan struct{}),
	}
}

// Enqueue appends cmd, blocking while the queue is full.
func (q *Queue) Enqueue(cmd tecnicofs.Command) error {
	if q.closed.Load() {
		return ErrClosed
	}
	select {
	case <-q.aborted:
		return ErrAborted
	default:
	}
	select {
	case q.ch <- cmd:
		return nil
	case <-q.aborted:
		return ErrAborted
	}
}

// Dequeue removes the oldest command. It returns the sentinel once Close was
// called and the buffer is drained, or as soon as the queue is aborted.
func (q *Queue) Dequeue() tecnicofs.Command {
	select {
	case <-q.aborted:
		return tecnicofs.Sentinel
	default:
	}
	select {
	case cmd := <-q.ch:
		return cmd
	case <-q.aborted:
		return tecnicofs.Sentinel
	case <-q.done:
		select {
		case cmd := <-q.ch:
			return cmd
		default:
			return tecnicofs.Sentinel
		}
	}
}

// Close marks production as finished. Must not race with Enqueue; the
// producer calls it after its last Enqueue.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)
	})
}

// Abort stops the queue immediately, releasing blocked producers and consumers
func (q *Queue) Abort() {
	q.abortOnce.Do(func() {
		close(q.aborted)
	})
}

// Len returns the number of buffered commands
func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Capacity() int {
	return cap(q.ch)
}

// Backlog is the non-blocking variant: the producer fills it completely before
// consumption starts, then workers drain it.
type Backlog struct {
	mu       sync.Mutex
	items    []tecnicofs.Command
	head     int
	capacity int
	aborted  bool
}

func NewBacklog(capacity int) *Backlog {
	return &Backlog{items: make([]tecnicofs.Command, 0, capacity), capacity: capacity}
}

// Enqueue appends cmd or fails with ErrFull at capacity
func (b *Backlog) Enqueue(cmd tecnicofs.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.aborted {
		return ErrAborted
	}
	if len(b.items) >= b.capacity {
		return ErrFull
	}
	b.items = append(b.items, cmd)
	return nil
}

// Dequeue returns the next command, or the sentinel when empty
func (b *Backlog) Dequeue() tecnicofs.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.aborted || b.head >= len(b.items) {
		return tecnicofs.Sentinel
	}
	cmd := b.items[b.head]
	b.head++
	return cmd
}

func (b *Backlog) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aborted = true
}

// Capacity returns the maximum number of commands
func (b *Backlog) Capacity() int {
	return b.capacity
}

func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items) - b.head
}
