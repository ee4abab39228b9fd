// Package sop defines the document model for standard operating procedures:
// documents, their ordered steps, and immutable version snapshots.
//
// A Step is a tagged union over two wire shapes: a bare string title or a
// structured object with enrichment metadata. Both shapes are equivalent at
// read time; a plain step is promoted to the structured form on the first
// structured edit. Marshaling preserves the minimal shape so round-trips
// through storage never widen a plain step.
//
// Versions are append-only snapshots of a document's title, summary and
// flattened step titles under a strictly increasing per-document number.
// They are never mutated or renumbered after creation.
package sop
