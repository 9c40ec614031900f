// Package requests parses textual commands from scripts and client messages.
//
// Grammar, one command per line:
//
//	c <path> <f|d>   create a file or directory
//	l <path>         lookup
//	d <path>         delete
//	p <path>         dump the tree into a file (server messages only)
//	# ...            comment (scripts only)
package requests

import (
	"fmt"
	"strings"

	"github.com/brettbedarf/tecnicofs"
)

// Grammar selects which opcodes a source accepts
type Grammar int

const (
	// BatchGrammar accepts c, l and d
	BatchGrammar Grammar = iota
	// ServerGrammar also accepts p
	ServerGrammar
)

func (g Grammar) allows(op tecnicofs.Opcode) bool {
	switch op {
	case tecnicofs.OpCreate, tecnicofs.OpLookup, tecnicofs.OpDelete:
		return true
	case tecnicofs.OpPrint:
		return g == ServerGrammar
	default:
		return false
	}
}

// ParseLine parses one script line. ok is false for blank and comment lines.
// Errors wrap [tecnicofs.ErrMalformedCommand].
func ParseLine(line string, g Grammar) (cmd tecnicofs.Command, ok bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return cmd, false, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields[0]) != 1 {
		return cmd, false, fmt.Errorf("%w: invalid opcode %q", tecnicofs.ErrMalformedCommand, fields[0])
	}
	op := tecnicofs.Opcode(fields[0][0])
	if !g.allows(op) {
		return cmd, false, fmt.Errorf("%w: invalid opcode %q", tecnicofs.ErrMalformedCommand, fields[0])
	}

	want := 2
	if op == tecnicofs.OpCreate {
		want = 3
	}
	if len(fields) != want {
		return cmd, false, fmt.Errorf("%w: %s expects %d arguments, got %d",
			tecnicofs.ErrMalformedCommand, op, want-1, len(fields)-1)
	}

	cmd = tecnicofs.Command{Op: op, Path: fields[1]}
	if op == tecnicofs.OpCreate {
		if len(fields[2]) != 1 {
			return tecnicofs.Command{}, false, fmt.Errorf("%w: invalid node type %q", tecnicofs.ErrMalformedCommand, fields[2])
		}
		cmd.Kind = tecnicofs.Kind(fields[2][0])
	}
	if err := cmd.Validate(); err != nil {
		return tecnicofs.Command{}, false, err
	}
	return cmd, true, nil
}

// UnmarshalCommand parses a single client message. Unlike script lines, an
// empty message or a comment is an error.
func UnmarshalCommand(data []byte) (tecnicofs.Command, error) {
	cmd, ok, err := ParseLine(string(data), ServerGrammar)
	if err != nil {
		return cmd, err
	}
	if !ok {
		return cmd, fmt.Errorf("%w: empty message", tecnicofs.ErrMalformedCommand)
	}
	return cmd, nil
}

// MarshalCommand encodes cmd as a client message
func MarshalCommand(cmd tecnicofs.Command) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return []byte(cmd.String()), nil
}
