// Package engine executes commands against the tree under a synchronization
// strategy, either from a batch script through the worker pool or one at a
// time for the request server.
package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/brettbedarf/tecnicofs"
)

// ErrContractViolation reports a command that reached execution without
// passing intake validation. It is fatal for a batch run.
var ErrContractViolation = errors.New("contract violation")

// Tree is the namespace a dispatcher applies commands to
type Tree interface {
	Lookup(path string) (int, error)
	Create(path string, kind tecnicofs.Kind) (int, error)
	Delete(path string) error
	Dump(w io.Writer) error
	DumpFile(name string) error
	Len() int
}

// Result is the outcome of one command
type Result struct {
	Cmd tecnicofs.Command
	ID  int // Node id for create and lookup
	Err error
}

// Code returns the wire reply for the result
func (r Result) Code() int32 {
	return tecnicofs.ResultCode(r.ID, r.Err)
}

// String renders the result as one output line
func (r Result) String() string {
	var line string
	switch r.Cmd.Op {
	case tecnicofs.OpCreate:
		line = fmt.Sprintf("Create %s: %s", r.Cmd.Kind, r.Cmd.Path)
	case tecnicofs.OpLookup:
		if r.Err == nil {
			return fmt.Sprintf("Search: %s found", r.Cmd.Path)
		}
		if errors.Is(r.Err, tecnicofs.ErrNotFound) {
			return fmt.Sprintf("Search: %s not found", r.Cmd.Path)
		}
		line = fmt.Sprintf("Search: %s", r.Cmd.Path)
	case tecnicofs.OpDelete:
		line = fmt.Sprintf("Delete: %s", r.Cmd.Path)
	case tecnicofs.OpPrint:
		line = fmt.Sprintf("Print: %s", r.Cmd.Path)
	default:
		line = r.Cmd.String()
	}
	if r.Err != nil {
		return line + ": " + r.Err.Error()
	}
	return line
}

// Apply executes a validated command against tree
func Apply(tree Tree, cmd tecnicofs.Command) Result {
	res := Result{Cmd: cmd}
	switch cmd.Op {
	case tecnicofs.OpCreate:
		res.ID, res.Err = tree.Create(cmd.Path, cmd.Kind)
	case tecnicofs.OpLookup:
		res.ID, res.Err = tree.Lookup(cmd.Path)
	case tecnicofs.OpDelete:
		res.Err = tree.Delete(cmd.Path)
	case tecnicofs.OpPrint:
		if err := tree.DumpFile(cmd.Path); err != nil {
			res.Err = fmt.Errorf("%w: %w", tecnicofs.ErrInternal, err)
		}
	default:
		res.Err = fmt.Errorf("%w: opcode %q", tecnicofs.ErrMalformedCommand, byte(cmd.Op))
	}
	return res
}

// Dispatcher validates and applies one command. The error is non-nil only for
// contract violations; operational failures are carried in the Result.
type Dispatcher interface {
	Dispatch(cmd tecnicofs.Command) (Result, error)
}

// Coarse serializes validation and execution behind one mutex. The tree must
// be unguarded.
type Coarse struct {
	mu   sync.Mutex
	tree Tree
}

func NewCoarse(tree Tree) *Coarse {
	return &Coarse{tree: tree}
}

func (c *Coarse) Dispatch(cmd tecnicofs.Command) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := cmd.Validate(); err != nil {
		return Result{Cmd: cmd, Err: err}, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	return Apply(c.tree, cmd), nil
}

// Fine takes no global lock; the guarded tree locks nodes per operation.
type Fine struct {
	tree Tree
}

func NewFine(tree Tree) *Fine {
	return &Fine{tree: tree}
}

func (f *Fine) Dispatch(cmd tecnicofs.Command) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return Result{Cmd: cmd, Err: err}, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	return Apply(f.tree, cmd), nil
}
