package client

import (
	"errors"
	"fmt"
	"io"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/internal/engine"
	"github.com/brettbedarf/tecnicofs/requests"
)

// Replay sends every command of script through op in order and writes one
// result line per command to out. Operational failures are reported and
// skipped; a parse or transport error stops the replay.
func Replay(op tecnicofs.FileSystemOperator, script io.Reader, out io.Writer) (int, error) {
	sr := requests.NewScriptReader(script, requests.ServerGrammar)
	count := 0
	for {
		cmd, err := sr.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		res := engine.Result{Cmd: cmd}
		switch cmd.Op {
		case tecnicofs.OpCreate:
			res.ID, res.Err = op.Create(cmd.Path, cmd.Kind)
		case tecnicofs.OpLookup:
			res.ID, res.Err = op.Lookup(cmd.Path)
		case tecnicofs.OpDelete:
			res.Err = op.Delete(cmd.Path)
		case tecnicofs.OpPrint:
			res.Err = op.Print(cmd.Path)
		}
		if res.Err != nil && !isOperational(res.Err) {
			return count, fmt.Errorf("line %d: %w", sr.Line(), res.Err)
		}
		count++
		fmt.Fprintf(out, "%s [%d]\n", res, res.Code())
	}
}

// isOperational reports whether err came back as a reply code
func isOperational(err error) bool {
	for _, target := range []error{
		tecnicofs.ErrNotFound,
		tecnicofs.ErrParentMissing,
		tecnicofs.ErrAlreadyExists,
		tecnicofs.ErrTableFull,
		tecnicofs.ErrDirectoryNotEmpty,
		tecnicofs.ErrNotDirectory,
		tecnicofs.ErrInvalidPath,
		tecnicofs.ErrMalformedCommand,
		tecnicofs.ErrInternal,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
