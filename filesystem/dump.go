package filesystem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"go.uber.org/multierr"
)

// DumpEntry is one line of a tree dump
type DumpEntry struct {
	Path string
	Kind tecnicofs.Kind
}

func (e DumpEntry) String() string {
	return fmt.Sprintf("%s %c", e.Path, e.Kind)
}

// Dump writes every live node to w, one `<path> <f|d>` line each, in
// depth-first pre-order with siblings sorted by name. The root comes first as
// "/ d". The root guard is write-locked for the whole traversal; every other
// operation holds the root until it returns, so the dump sees a quiescent tree.
func (fs *FileSystem) Dump(w io.Writer) error {
	op := fs.begin()
	defer op.ReleaseAll()
	op.Acquire(fs.root, Write)

	bw := bufio.NewWriter(w)
	if err := fs.dumpNode(bw, "/", fs.root); err != nil {
		return err
	}
	return bw.Flush()
}

func (fs *FileSystem) dumpNode(w *bufio.Writer, p string, n *Node) error {
	if _, err := fmt.Fprintln(w, DumpEntry{Path: p, Kind: n.kind}); err != nil {
		return err
	}
	for _, name := range n.childNames() {
		id, ok := n.Child(name)
		if !ok {
			continue
		}
		child, ok := fs.table.Get(id)
		if !ok {
			return fmt.Errorf("%w: dangling entry %s -> %d", tecnicofs.ErrInternal, path.Join(p, name), id)
		}
		if err := fs.dumpNode(w, path.Join(p, name), child); err != nil {
			return err
		}
	}
	return nil
}

// DumpFile creates (or truncates) the file at name and dumps the tree into it
func (fs *FileSystem) DumpFile(name string) (err error) {
	logger := util.GetLogger("FS.DumpFile")

	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to open dump file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if err = fs.Dump(f); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}
	logger.Debug().Str("file", name).Int("nodes", fs.Len()).Msg("Tree dumped")
	return nil
}

// ParseDump reads the output of [FileSystem.Dump]. Blank lines are skipped.
func ParseDump(r io.Reader) ([]DumpEntry, error) {
	var entries []DumpEntry
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || len(fields[1]) != 1 {
			return nil, fmt.Errorf("dump line %d: expected '<path> <f|d>', got %q", lineNo, line)
		}
		kind := tecnicofs.Kind(fields[1][0])
		if !kind.Valid() {
			return nil, fmt.Errorf("dump line %d: invalid node type %q", lineNo, fields[1])
		}
		entries = append(entries, DumpEntry{Path: fields[0], Kind: kind})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Restore creates every non-root entry in order. Entries must list parents
// before children, as a dump does.
func (fs *FileSystem) Restore(entries []DumpEntry) error {
	for _, e := range entries {
		if len(splitPath(e.Path)) == 0 {
			continue
		}
		if _, err := fs.Create(e.Path, e.Kind); err != nil {
			return fmt.Errorf("restore %s: %w", e, err)
		}
	}
	return nil
}
