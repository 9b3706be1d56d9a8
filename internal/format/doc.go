// Package format defines the per-format Data contract and the registry used
// for format auto-detection.
//
// Every Data value walks the same lifecycle:
//
//	Uninspected -> Inspected -> Read
//
// with Failed reachable from any transition. InspectQuick classifies a
// stream by its magic bytes alone; Inspect additionally pulls the cheap
// header metadata; both restore the stream position on every exit path.
// Read is the full parse and fails if trailing bytes remain afterward;
// Write is the symmetric serialization, with some formats deliberately
// refusing directions they do not support.
//
// The registry's Identify loop tries each registered format's InspectQuick
// in turn, treating a mismatch as "keep looking" and any other error as
// fatal, which is how callers open a file of unknown type.
package format
