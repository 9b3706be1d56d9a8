// Package record is the struct engine: it turns the descriptor IR of a
// format description into readable and writable record instances.
//
// A Record owns one child value per field descriptor of its definition,
// materialized lazily; fields a version or condition rules out for a given
// file are never materialized during a read. Read and write iterate the
// filtered field list in declaration order, so a field's condition and
// length expressions may only reference fields declared earlier.
//
// The engine is interpreter-style: rather than generating one Go struct
// per description type, a single Record type walks the shared descriptor
// tables. All per-class knowledge lives in the ir package, built once at
// schema load.
//
// Records are not safe for concurrent use; each parsed file gets its own
// tree, and nothing is shared between trees except the immutable schema.
package record
