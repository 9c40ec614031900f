package filesystem

import (
	"fmt"
	"sync"

	"github.com/brettbedarf/tecnicofs"
)

// NodeTable is a fixed-capacity arena of nodes indexed by id. Free ids are kept
// on a stack: at start the lowest id is on top, afterwards the most recently
// freed id is reused first.
type NodeTable struct {
	mu    sync.RWMutex
	slots []*Node
	free  []int
}

// NewNodeTable creates an empty table with room for capacity nodes
func NewNodeTable(capacity int) *NodeTable {
	t := &NodeTable{
		slots: make([]*Node, capacity),
		free:  make([]int, 0, capacity),
	}
	for id := capacity - 1; id >= 0; id-- {
		t.free = append(t.free, id)
	}
	return t
}

// Alloc takes a free id and stores a new node in its slot.
func (t *NodeTable) Alloc(kind tecnicofs.Kind, name string, parent int) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.free) == 0 {
		return nil, fmt.Errorf("%w: capacity %d", tecnicofs.ErrTableFull, len(t.slots))
	}
	id := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	n := newNode(id, kind, name, parent)
	t.slots[id] = n
	return n, nil
}

// Free clears the slot and returns id to the free list. Freeing an empty slot
// is a no-op.
func (t *NodeTable) Free(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 0 || id >= len(t.slots) || t.slots[id] == nil {
		return
	}
	t.slots[id] = nil
	t.free = append(t.free, id)
}

// Get returns the live node stored under id
func (t *NodeTable) Get(id int) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 0 || id >= len(t.slots) {
		return nil, false
	}
	n := t.slots[id]
	return n, n != nil
}

// Len returns the number of live nodes
func (t *NodeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots) - len(t.free)
}

func (t *NodeTable) Capacity() int {
	return len(t.slots)
}
