package engine

import (
	"github.com/brettbedarf/tecnicofs"
)

// Operator runs [tecnicofs.FileSystemOperator] calls in process through a
// dispatcher, one command at a time per call.
type Operator struct {
	d Dispatcher
}

func NewOperator(d Dispatcher) *Operator {
	return &Operator{d: d}
}

func (o *Operator) run(cmd tecnicofs.Command) (int, error) {
	res, err := o.d.Dispatch(cmd)
	if err != nil {
		return 0, err
	}
	return res.ID, res.Err
}

func (o *Operator) Create(path string, kind tecnicofs.Kind) (int, error) {
	return o.run(tecnicofs.Command{Op: tecnicofs.OpCreate, Path: path, Kind: kind})
}

func (o *Operator) Delete(path string) error {
	_, err := o.run(tecnicofs.Command{Op: tecnicofs.OpDelete, Path: path})
	return err
}

func (o *Operator) Lookup(path string) (int, error) {
	return o.run(tecnicofs.Command{Op: tecnicofs.OpLookup, Path: path})
}

func (o *Operator) Print(outPath string) error {
	_, err := o.run(tecnicofs.Command{Op: tecnicofs.OpPrint, Path: outPath})
	return err
}
