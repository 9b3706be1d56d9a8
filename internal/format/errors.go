package format

import (
	"errors"
	"fmt"
)

// MismatchError means the stream's magic bytes do not belong to the format
// that inspected it. Auto-detection catches it and tries the next format;
// anything else bubbling out of InspectQuick is a real failure.
type MismatchError struct {
	Format string
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("not a %s file: %s", e.Format, e.Reason)
}

// IsMismatch reports whether err is or wraps a MismatchError.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// VersionError means the header parsed but carries a version outside the
// format's known table. Fatal for the file, survivable for a batch.
type VersionError struct {
	Format  string
	Version uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s version 0x%08X is not supported", e.Format, e.Version)
}

// IsVersionError reports whether err is or wraps a VersionError.
func IsVersionError(err error) bool {
	var ve *VersionError
	return errors.As(err, &ve)
}

// ContentError means the byte stream disagrees with the parsed structure:
// trailing bytes after a complete parse, or internal tables that contradict
// each other.
type ContentError struct {
	Format  string
	Message string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("%s content error: %s", e.Format, e.Message)
}

// IsContentError reports whether err is or wraps a ContentError.
func IsContentError(err error) bool {
	var ce *ContentError
	return errors.As(err, &ce)
}

// NotImplementedError marks a serialization direction a format deliberately
// does not support. Explicit and loud, never silently skipped.
type NotImplementedError struct {
	Format string
	Op     string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s: %s is not implemented", e.Format, e.Op)
}

// IsNotImplemented reports whether err is or wraps a NotImplementedError.
func IsNotImplemented(err error) bool {
	var ne *NotImplementedError
	return errors.As(err, &ne)
}

// ErrUnknownFormat is returned by Identify when no registered format claims
// the stream.
var ErrUnknownFormat = errors.New("stream matches no known format")
