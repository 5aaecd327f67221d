package logger

import "go.uber.org/zap"

// Field names shared by the HTTP log line, the service and the store.
const (
	FieldSessionID = "session_id"
	FieldOp        = "op"
	FieldRevision  = "revision"
	FieldProfile   = "profile"
)

// SessionID tags a log line with a session id. Empty ids are skipped.
func SessionID(id string) zap.Field {
	if id == "" {
		return zap.Skip()
	}
	return zap.String(FieldSessionID, id)
}

// Op tags a log line with a state operation name.
func Op(op string) zap.Field { return zap.String(FieldOp, op) }

// Revision tags a log line with a session revision.
func Revision(rev int) zap.Field { return zap.Int(FieldRevision, rev) }

// Profile tags a log line with a session profile name.
func Profile(name string) zap.Field { return zap.String(FieldProfile, name) }
