package filesystem

import (
	"slices"
	"sync"

	"github.com/brettbedarf/tecnicofs"
	"github.com/puzpuzpuz/xsync/v4"
)

// noParent marks the root's parent slot
const noParent = -1

// Node is a single file or directory in the tree. id, kind, name and parent
// never change while the node is live; the slot is cleared on delete and a new
// Node is allocated when the id is reused.
type Node struct {
	id       int
	kind     tecnicofs.Kind
	name     string
	parent   int
	mu       sync.RWMutex            // Per-node guard, used only by guarded trees
	children *xsync.Map[string, int] // child name -> node id; always empty for files
}

func newNode(id int, kind tecnicofs.Kind, name string, parent int) *Node {
	return &Node{
		id:       id,
		kind:     kind,
		name:     name,
		parent:   parent,
		children: xsync.NewMap[string, int](),
	}
}

func (n *Node) ID() int { return n.id }

func (n *Node) Kind() tecnicofs.Kind { return n.kind }

func (n *Node) Name() string { return n.name }

// Parent returns the parent id, or -1 for the root
func (n *Node) Parent() int { return n.parent }

func (n *Node) IsDir() bool { return n.kind == tecnicofs.KindDir }

// Child returns the id of the named child
func (n *Node) Child(name string) (int, bool) {
	return n.children.Load(name)
}

// NumChildren returns the number of directory entries
func (n *Node) NumChildren() int {
	return n.children.Size()
}

// childNames returns the entry names in ascending order
func (n *Node) childNames() []string {
	names := make([]string, 0, n.children.Size())
	n.children.Range(func(name string, _ int) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// link adds an entry; false if the name is already taken
func (n *Node) link(name string, id int) bool {
	_, loaded := n.children.LoadOrStore(name, id)
	return !loaded
}

func (n *Node) unlink(name string) {
	n.children.Delete(name)
}
