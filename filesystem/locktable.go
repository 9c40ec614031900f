package filesystem

import (
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// LockMode is the mode a node guard is held in
type LockMode int

const (
	Read LockMode = iota
	Write
)

func (m LockMode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

type heldLock struct {
	id    int
	guard *sync.RWMutex
	mode  LockMode
}

// LockTable registers in-flight operations and the guards each one holds.
type LockTable struct {
	ops *xsync.Map[uuid.UUID, *OpContext]
}

func NewLockTable() *LockTable {
	return &LockTable{ops: xsync.NewMap[uuid.UUID, *OpContext]()}
}

// Begin registers a new operation. Callers must `defer op.ReleaseAll()`
// immediately.
func (lt *LockTable) Begin() *OpContext {
	op := &OpContext{id: uuid.New(), table: lt}
	lt.ops.Store(op.id, op)
	return op
}

// Active returns the number of operations that have not released yet
func (lt *LockTable) Active() int {
	return lt.ops.Size()
}

// Held returns how many guards the registered operation holds, 0 when it is
// not registered. Only safe from the goroutine running the operation.
func (lt *LockTable) Held(id uuid.UUID) int {
	op, ok := lt.ops.Load(id)
	if !ok {
		return 0
	}
	return op.Held()
}

// OpContext is the lock stack of one tree operation. Guards are released in
// reverse acquisition order by [OpContext.ReleaseAll].
//
// An OpContext without a table (see [FileSystem] with locking disabled) never
// locks anything.
//
// NOTE: OpContext is **not** thread-safe; it belongs to the goroutine running
// the operation.
type OpContext struct {
	id    uuid.UUID
	table *LockTable
	held  []heldLock
}

// ID returns the operation id, the zero UUID when unguarded
func (op *OpContext) ID() uuid.UUID {
	return op.id
}

// Acquire takes n's guard in mode. It is a no-op if this operation already
// holds n, whatever the mode; callers acquire each node once in the mode it
// finally needs.
func (op *OpContext) Acquire(n *Node, mode LockMode) {
	if op == nil || op.table == nil {
		return
	}
	if _, ok := op.Holds(n.id); ok {
		return
	}
	if mode == Write {
		n.mu.Lock()
	} else {
		n.mu.RLock()
	}
	op.held = append(op.held, heldLock{id: n.id, guard: &n.mu, mode: mode})
}

// Holds reports whether the operation holds the guard of node id and in which mode
func (op *OpContext) Holds(id int) (LockMode, bool) {
	if op == nil {
		return Read, false
	}
	for _, h := range op.held {
		if h.id == id {
			return h.mode, true
		}
	}
	return Read, false
}

// Held returns the number of guards currently held
func (op *OpContext) Held() int {
	if op == nil {
		return 0
	}
	return len(op.held)
}

// ReleaseAll unlocks every held guard in reverse order and deregisters the
// operation. Safe to call on a nil context and more than once, so it can be
// deferred unconditionally.
func (op *OpContext) ReleaseAll() {
	if op == nil {
		return
	}
	for i := len(op.held) - 1; i >= 0; i-- {
		h := op.held[i]
		if h.mode == Write {
			h.guard.Unlock()
		} else {
			h.guard.RUnlock()
		}
	}
	op.held = nil
	if op.table != nil {
		op.table.ops.Delete(op.id)
	}
}
