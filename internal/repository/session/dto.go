package session

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/refine/internal/domain/searchstate"
	domsession "github.com/kailas-cloud/refine/internal/domain/session"
)

// Hash fields of a stored session.
const (
	fieldRevision  = "rev"
	fieldProfile   = "profile"
	fieldState     = "state"
	fieldUpdatedAt = "updated_at"
)

// sessionToHash converts a Session to a map for the guarded HSET.
func sessionToHash(sess domsession.Session) (map[string]string, error) {
	state, err := sess.State().MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return map[string]string{
		fieldRevision:  strconv.Itoa(sess.Revision()),
		fieldProfile:   sess.Profile(),
		fieldState:     string(state),
		fieldUpdatedAt: strconv.FormatInt(sess.UpdatedAt(), 10),
	}, nil
}

// sessionFromHash hydrates a Session from an HGETALL result map.
func sessionFromHash(id string, m map[string]string) (domsession.Session, error) {
	rev, err := strconv.Atoi(m[fieldRevision])
	if err != nil {
		return domsession.Session{}, fmt.Errorf("session %s: invalid revision: %w", id, err)
	}

	var updatedAt int64
	if v := m[fieldUpdatedAt]; v != "" {
		updatedAt, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return domsession.Session{}, fmt.Errorf("session %s: invalid updated_at: %w", id, err)
		}
	}

	state, err := searchstate.DecodeState([]byte(m[fieldState]))
	if err != nil {
		return domsession.Session{}, fmt.Errorf("session %s: decode state: %w", id, err)
	}

	return domsession.Reconstruct(id, m[fieldProfile], state, rev, updatedAt), nil
}
