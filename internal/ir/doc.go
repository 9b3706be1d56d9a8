// Package ir holds the compiled form of a format description: struct, enum
// and bitfield definitions plus the per-field descriptors that drive the
// record engine. The XML loader produces a Schema once at startup; after
// Finalize the Schema is immutable and shared read-only by every record
// instance built from it.
//
// Two schema-load-time transforms remove runtime introspection from the hot
// path:
//
//   - Inheritance is flattened into a single linear field list per struct,
//     base classes first, with later duplicate names collapsed onto the
//     first occurrence.
//
//   - The version/user-version part of field filtering is precomputed into a
//     per-(version, user version) index table, cached on the struct
//     definition. Presence conditions still depend on sibling field values
//     and are evaluated per record instance at read time.
package ir
