package format

import (
	"fmt"

	"github.com/quellen/fileform/internal/codec"
)

// State tracks where a Data value is in its lifecycle.
type State int

const (
	StateUninspected State = iota
	StateInspected
	StateRead
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninspected:
		return "uninspected"
	case StateInspected:
		return "inspected"
	case StateRead:
		return "read"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Data is the top-level object of one parsed file. Implementations own the
// file's version fields, byte order, and root records.
type Data interface {
	// InspectQuick reads just enough header to classify the stream,
	// restoring its position afterward. A wrong magic surfaces as a
	// MismatchError.
	InspectQuick(s *codec.Stream) error

	// Inspect is InspectQuick plus the cheap header metadata, with the
	// same position guarantee.
	Inspect(s *codec.Stream) error

	// Read performs the full parse. Trailing unread bytes after the
	// expected structure fail with a ContentError.
	Read(s *codec.Stream) error

	// Write serializes the full file.
	Write(s *codec.Stream) error

	// State reports the lifecycle state.
	State() State

	// Version and UserVersion report the file's version context, valid
	// once inspected.
	Version() uint32
	UserVersion() uint32
}

// Lifecycle is the embeddable state tracker Data implementations share.
type Lifecycle struct {
	state State
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State { return l.state }

// Transition records the outcome of a lifecycle step: on success the state
// advances to next, on failure it parks at Failed. It returns err unchanged
// so call sites can `return d.Transition(next, err)`.
func (l *Lifecycle) Transition(next State, err error) error {
	if err != nil {
		l.state = StateFailed
		return err
	}
	l.state = next
	return nil
}

// Format couples a format name with a Data constructor.
type Format interface {
	// Name is the short upper-case format name ("NIF", "BSA", ...).
	Name() string

	// Extensions lists the file extensions, with dot, the format claims.
	Extensions() []string

	// New creates an empty Data. Construction may compile the format's
	// description on first use and can therefore fail.
	New() (Data, error)
}
