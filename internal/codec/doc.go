// Package codec implements the primitive wire types shared by every file
// format: fixed-width integers, 32-bit floats, the three string shapes
// (null-terminated, fixed-length, length-prefixed) and the undecoded trailing
// blob. Each primitive knows its own wire size and reads or writes itself
// from a Stream, which carries the byte order of the owning file.
//
// Streams also provide the scoped position save/restore that inspect relies
// on: PreservePos guarantees the cursor is back where it started on every
// exit path, success or failure.
package codec
