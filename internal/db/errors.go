package db

import "errors"

// ErrBadReply signals a server reply of an unexpected shape.
var ErrBadReply = errors.New("db: unexpected reply")

// Op constants map to Valkey/Redis command names for error context.
const (
	OpDel        = "DEL"
	OpHGetAll    = "HGETALL"
	OpExists     = "EXISTS"
	OpEvalSHA    = "EVALSHA"
	OpScriptLoad = "SCRIPT LOAD"
	OpPing       = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
