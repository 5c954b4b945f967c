package persist

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type Status int

const (
	Pending Status = iota
	Committed
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Mutation tracks one optimistic change from the moment the view is updated
// until the backend confirms or rejects every call it issued.
type Mutation struct {
	ID       ulid.ULID
	Kind     string
	Status   Status
	Started  time.Time
	Finished time.Time
	Err      error
}

func newMutation(kind string) *Mutation {
	return &Mutation{
		ID:      ulid.MustNew(ulid.Now(), rand.Reader),
		Kind:    kind,
		Status:  Pending,
		Started: time.Now(),
	}
}

func (m *Mutation) commit() {
	m.Status = Committed
	m.Finished = time.Now()
}

func (m *Mutation) fail(err error) {
	m.Status = Failed
	m.Err = err
	m.Finished = time.Now()
}

// EntityError is a failed call for a single card or list.
type EntityError struct {
	ID  uuid.UUID
	Err error
}

func (e EntityError) Error() string { return fmt.Sprintf("%s: %v", e.ID, e.Err) }

func (e EntityError) Unwrap() error { return e.Err }

// BatchError aggregates the failures of one mutation. Applied counts the
// updates that reached the backend before the batch was rolled back.
type BatchError struct {
	Mutation    ulid.ULID
	Kind        string
	Total       int
	Applied     int
	Failures    []EntityError
	Compensated bool
	// Compensation holds the errors raised while restoring applied rows.
	Compensation []EntityError
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d of %d updates failed", e.Kind, e.Mutation, len(e.Failures), e.Total)
	if len(e.Failures) > 0 {
		fmt.Fprintf(&b, " (first: %v)", e.Failures[0].Err)
	}
	if !e.Compensated {
		b.WriteString("; backend may differ from view until refresh")
	}
	return b.String()
}

// Unwrap exposes every underlying failure to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures)+len(e.Compensation))
	for _, f := range e.Failures {
		out = append(out, f)
	}
	for _, f := range e.Compensation {
		out = append(out, f)
	}
	return out
}

// Failed reports whether id is among the entities whose update failed.
func (e *BatchError) Failed(id uuid.UUID) bool {
	for _, f := range e.Failures {
		if f.ID == id {
			return true
		}
	}
	return false
}

// IsBatchError is a shorthand for errors.As with a *BatchError target.
func IsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	ok := errors.As(err, &be)
	return be, ok
}
