package session

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/refine/internal/domain/searchstate"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Session is a stored search state with its optimistic concurrency revision
// (immutable value object).
type Session struct {
	id        string
	profile   string
	state     *searchstate.State
	revision  int
	updatedAt int64
}

// ValidateID checks a session id: ^[a-zA-Z0-9_-]+$, 1-64 chars.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if len(id) > 64 {
		return fmt.Errorf("session id too long (max 64)")
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("session id must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates a Session at revision 1.
func New(id, profile string, state *searchstate.State) (Session, error) {
	if err := ValidateID(id); err != nil {
		return Session{}, err
	}
	if state == nil {
		return Session{}, fmt.Errorf("session state is required")
	}
	return Session{
		id:        id,
		profile:   profile,
		state:     state,
		revision:  1,
		updatedAt: time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Session without validation (storage hydration).
func Reconstruct(id, profile string, state *searchstate.State, revision int, updatedAt int64) Session {
	return Session{
		id:        id,
		profile:   profile,
		state:     state,
		revision:  revision,
		updatedAt: updatedAt,
	}
}

// Next returns the session holding state at the following revision.
func (s Session) Next(state *searchstate.State) Session {
	return Session{
		id:        s.id,
		profile:   s.profile,
		state:     state,
		revision:  s.revision + 1,
		updatedAt: time.Now().UnixMilli(),
	}
}

// ID returns the session id.
func (s Session) ID() string { return s.id }

// Profile returns the name of the profile the session was created from.
func (s Session) Profile() string { return s.profile }

// State returns the current search state.
func (s Session) State() *searchstate.State { return s.state }

// Revision returns the optimistic concurrency version.
func (s Session) Revision() int { return s.revision }

// UpdatedAt returns the last write timestamp (unix millis).
func (s Session) UpdatedAt() int64 { return s.updatedAt }
