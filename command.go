// Package tecnicofs contains core domain types shared by the engine, the
// request server and its clients.
package tecnicofs

import (
	"fmt"
	"strings"
)

// Opcode identifies the operation a [Command] performs. It is the first token
// of a script line or client message.
type Opcode byte

const (
	OpCreate Opcode = 'c'
	OpLookup Opcode = 'l'
	OpDelete Opcode = 'd'
	OpPrint  Opcode = 'p' // server mode only
	// OpQuit is reserved for the queue sentinel and is never parsed from input.
	OpQuit Opcode = 'q'
)

func (o Opcode) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpLookup:
		return "lookup"
	case OpDelete:
		return "delete"
	case OpPrint:
		return "print"
	case OpQuit:
		return "quit"
	default:
		return fmt.Sprintf("opcode(%q)", byte(o))
	}
}

// Kind is the node type; valid kinds are KindFile 'f' and KindDir 'd'
type Kind byte

const (
	KindNone Kind = 0
	KindFile Kind = 'f'
	KindDir  Kind = 'd'
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	default:
		return "none"
	}
}

// Valid reports whether k is a file or directory kind
func (k Kind) Valid() bool {
	return k == KindFile || k == KindDir
}

// Command is a single parsed namespace operation.
type Command struct {
	Seq  uint64 // Intake order; assigned by the producer
	Op   Opcode
	Path string
	Kind Kind // Only set for OpCreate
}

// Sentinel is the reserved value returned by command sources once no further
// commands will be produced.
var Sentinel = Command{Op: OpQuit}

// IsSentinel reports whether c signals the end of production
func (c Command) IsSentinel() bool {
	return c.Op == OpQuit
}

// Validate checks the command shape. Commands are validated once at intake, so
// a failure here downstream is a contract violation.
func (c Command) Validate() error {
	switch c.Op {
	case OpCreate:
		if !c.Kind.Valid() {
			return fmt.Errorf("%w: invalid node type %q", ErrMalformedCommand, byte(c.Kind))
		}
	case OpLookup, OpDelete, OpPrint:
		if c.Kind != KindNone {
			return fmt.Errorf("%w: unexpected node type for %s", ErrMalformedCommand, c.Op)
		}
	default:
		return fmt.Errorf("%w: invalid opcode %q", ErrMalformedCommand, byte(c.Op))
	}
	if c.Path == "" || strings.ContainsAny(c.Path, " \t\r\n") {
		return fmt.Errorf("%w: invalid path %q", ErrMalformedCommand, c.Path)
	}
	return nil
}

// String formats the command as a single wire/script line without a trailing newline
func (c Command) String() string {
	if c.Op == OpCreate {
		return fmt.Sprintf("%c %s %c", c.Op, c.Path, c.Kind)
	}
	return fmt.Sprintf("%c %s", c.Op, c.Path)
}
