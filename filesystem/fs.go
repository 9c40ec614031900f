package filesystem

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
)

// FileSystem is the shared namespace tree.
//
// A guarded tree (fine strategy) takes per-node guards through its [LockTable]:
// every operation locks root-to-leaf and holds what it took until it returns,
// so shared ancestors are always acquired in the same order. An unguarded tree
// (coarse strategy) takes no node locks and relies on the caller serializing
// every call.
type FileSystem struct {
	cfg   *config.Config
	table *NodeTable
	locks *LockTable // nil when unguarded
	root  *Node
}

// NewFS creates a tree holding only the root directory. Node guards are used
// when cfg.Strategy is [config.StrategyFine].
func NewFS(cfg *config.Config) *FileSystem {
	table := NewNodeTable(cfg.NodeTableSize)
	root, err := table.Alloc(tecnicofs.KindDir, "", noParent)
	if err != nil || root.id != tecnicofs.RootID {
		panic(fmt.Sprintf("node table cannot hold the root: capacity %d", cfg.NodeTableSize))
	}

	fs := &FileSystem{cfg: cfg, table: table, root: root}
	if cfg.Strategy == config.StrategyFine {
		fs.locks = NewLockTable()
	}
	return fs
}

// Guarded reports whether the tree locks nodes itself
func (fs *FileSystem) Guarded() bool {
	return fs.locks != nil
}

// Locks returns the lock table, nil for an unguarded tree
func (fs *FileSystem) Locks() *LockTable {
	return fs.locks
}

// Len returns the number of live nodes, root included
func (fs *FileSystem) Len() int {
	return fs.table.Len()
}

func (fs *FileSystem) Capacity() int {
	return fs.table.Capacity()
}

// Lookup resolves path to a node id, read-locking every node on the way.
// The root path resolves to [tecnicofs.RootID].
func (fs *FileSystem) Lookup(path string) (int, error) {
	logger := util.GetLogger("FS.Lookup")

	op := fs.begin()
	defer op.ReleaseAll()

	n, err := fs.walk(op, splitPath(path), math.MaxInt)
	if err != nil {
		logger.Trace().Str("path", path).Msg("Not found")
		return 0, err
	}
	logger.Trace().Str("path", path).Int("id", n.id).Msg("Resolved")
	return n.id, nil
}

// Create adds a file or directory at path and returns its id. Ancestors are
// read-locked and the parent write-locked.
func (fs *FileSystem) Create(path string, kind tecnicofs.Kind) (int, error) {
	logger := util.GetLogger("FS.Create")

	if !kind.Valid() {
		return 0, fmt.Errorf("%w: node type %q", tecnicofs.ErrMalformedCommand, byte(kind))
	}
	comps := splitPath(path)
	if len(comps) == 0 {
		return 0, fmt.Errorf("%w: cannot create %q", tecnicofs.ErrInvalidPath, path)
	}
	dir, name := comps[:len(comps)-1], comps[len(comps)-1]

	op := fs.begin()
	defer op.ReleaseAll()

	parent, err := fs.walk(op, dir, len(dir))
	if err != nil {
		if errors.Is(err, tecnicofs.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", tecnicofs.ErrParentMissing, joinPath(dir))
		}
		return 0, err
	}
	if !parent.IsDir() {
		return 0, fmt.Errorf("%w: %s", tecnicofs.ErrNotDirectory, joinPath(dir))
	}
	if _, exists := parent.Child(name); exists {
		return 0, fmt.Errorf("%w: %s", tecnicofs.ErrAlreadyExists, joinPath(comps))
	}

	n, err := fs.table.Alloc(kind, name, parent.id)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Failed to allocate node")
		return 0, err
	}
	if !parent.link(name, n.id) {
		fs.table.Free(n.id)
		return 0, fmt.Errorf("%w: %s", tecnicofs.ErrAlreadyExists, joinPath(comps))
	}

	logger.Debug().Str("path", path).Int("id", n.id).Str("kind", kind.String()).Msg("Created node")
	return n.id, nil
}

// Delete removes the node at path. Directories must be empty. Ancestors are
// read-locked; the parent and the target are write-locked.
func (fs *FileSystem) Delete(path string) error {
	logger := util.GetLogger("FS.Delete")

	comps := splitPath(path)
	if len(comps) == 0 {
		return fmt.Errorf("%w: cannot delete the root", tecnicofs.ErrInvalidPath)
	}
	dir, name := comps[:len(comps)-1], comps[len(comps)-1]

	op := fs.begin()
	defer op.ReleaseAll()

	parent, err := fs.walk(op, dir, len(dir))
	if err != nil {
		return err
	}
	id, ok := parent.Child(name)
	if !ok {
		return fmt.Errorf("%w: %s", tecnicofs.ErrNotFound, joinPath(comps))
	}
	target, ok := fs.table.Get(id)
	if !ok {
		return fmt.Errorf("%w: dangling entry %s -> %d", tecnicofs.ErrInternal, joinPath(comps), id)
	}
	op.Acquire(target, Write)

	if target.NumChildren() > 0 {
		return fmt.Errorf("%w: %s", tecnicofs.ErrDirectoryNotEmpty, joinPath(comps))
	}
	parent.unlink(name)
	fs.table.Free(target.id)

	logger.Debug().Str("path", path).Int("id", target.id).Msg("Deleted node")
	return nil
}

func (fs *FileSystem) begin() *OpContext {
	if fs.locks == nil {
		return &OpContext{}
	}
	return fs.locks.Begin()
}

// walk resolves comps from the root. Nodes at depth >= writeFrom (root is
// depth 0) are write-locked, the rest read-locked.
func (fs *FileSystem) walk(op *OpContext, comps []string, writeFrom int) (*Node, error) {
	cur := fs.root
	op.Acquire(cur, modeAt(0, writeFrom))
	for i, name := range comps {
		id, ok := cur.Child(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", tecnicofs.ErrNotFound, joinPath(comps[:i+1]))
		}
		next, ok := fs.table.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: dangling entry %s -> %d", tecnicofs.ErrInternal, joinPath(comps[:i+1]), id)
		}
		op.Acquire(next, modeAt(i+1, writeFrom))
		cur = next
	}
	return cur, nil
}

func modeAt(depth, writeFrom int) LockMode {
	if depth >= writeFrom {
		return Write
	}
	return Read
}

// splitPath splits on '/' dropping empty components, so "a//b/" and "/a/b"
// name the same node
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

func joinPath(comps []string) string {
	return "/" + strings.Join(comps, "/")
}
