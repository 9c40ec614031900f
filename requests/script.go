package requests

import (
	"bufio"
	"fmt"
	"io"

	"github.com/brettbedarf/tecnicofs"
)

// ScriptReader yields the commands of a script in order, numbering them from 1.
type ScriptReader struct {
	sc      *bufio.Scanner
	grammar Grammar
	lineNo  int
	seq     uint64
}

func NewScriptReader(r io.Reader, g Grammar) *ScriptReader {
	return &ScriptReader{sc: bufio.NewScanner(r), grammar: g}
}

// Next returns the next command, or io.EOF once the script is exhausted.
// Parse errors carry the line number.
func (s *ScriptReader) Next() (tecnicofs.Command, error) {
	for s.sc.Scan() {
		s.lineNo++
		cmd, ok, err := ParseLine(s.sc.Text(), s.grammar)
		if err != nil {
			return tecnicofs.Command{}, fmt.Errorf("line %d: %w", s.lineNo, err)
		}
		if !ok {
			continue
		}
		s.seq++
		cmd.Seq = s.seq
		return cmd, nil
	}
	if err := s.sc.Err(); err != nil {
		return tecnicofs.Command{}, err
	}
	return tecnicofs.Command{}, io.EOF
}

// Line returns the number of the last line read
func (s *ScriptReader) Line() int {
	return s.lineNo
}

// ReadScript parses a whole script
func ReadScript(r io.Reader, g Grammar) ([]tecnicofs.Command, error) {
	sr := NewScriptReader(r, g)
	var cmds []tecnicofs.Command
	for {
		cmd, err := sr.Next()
		if err == io.EOF {
			return cmds, nil
		}
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
}
