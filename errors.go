package tecnicofs

import (
	"errors"
	"fmt"
)

// Operational errors. None of these are fatal; they surface as a printed line
// in batch mode or as a negative reply code over the socket.
var (
	ErrNotFound          = errors.New("not found")
	ErrParentMissing     = errors.New("parent directory missing")
	ErrAlreadyExists     = errors.New("already exists")
	ErrTableFull         = errors.New("node table full")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrNotDirectory      = errors.New("not a directory")
	ErrInvalidPath       = errors.New("invalid path")
	ErrMalformedCommand  = errors.New("malformed command")
	ErrInternal          = errors.New("internal error")
)

// Reply codes. Success replies are non-negative (a node id or ResultOK).
const (
	ResultOK                int32 = 0
	ResultNotFound          int32 = -1
	ResultParentMissing     int32 = -2
	ResultAlreadyExists     int32 = -3
	ResultTableFull         int32 = -4
	ResultDirectoryNotEmpty int32 = -5
	ResultNotDirectory      int32 = -6
	ResultInvalidPath       int32 = -7
	ResultMalformed         int32 = -8
	ResultInternal          int32 = -9
)

var codeErrors = []struct {
	code int32
	err  error
}{
	{ResultNotFound, ErrNotFound},
	{ResultParentMissing, ErrParentMissing},
	{ResultAlreadyExists, ErrAlreadyExists},
	{ResultTableFull, ErrTableFull},
	{ResultDirectoryNotEmpty, ErrDirectoryNotEmpty},
	{ResultNotDirectory, ErrNotDirectory},
	{ResultInvalidPath, ErrInvalidPath},
	{ResultMalformed, ErrMalformedCommand},
	{ResultInternal, ErrInternal},
}

// ResultCode maps an operation outcome to its wire reply.
// On success the value (node id or 0) is returned unchanged.
func ResultCode(value int, err error) int32 {
	if err == nil {
		return int32(value)
	}
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return ResultInternal
}

// ErrorFromCode is the inverse of [ResultCode]; it returns nil for
// non-negative codes.
func ErrorFromCode(code int32) error {
	if code >= 0 {
		return nil
	}
	for _, ce := range codeErrors {
		if ce.code == code {
			return ce.err
		}
	}
	return fmt.Errorf("%w: unknown reply code %d", ErrInternal, code)
}
