// Package memory is the Memory Adapter (C3): a typed facade over a vector
// store with five namespaces — tools, errors, fixes, docs, patterns — each
// backed by its own Qdrant collection. Embedding is delegated to an
// external OpenAI-compatible embeddings endpoint; this package never
// computes vectors itself.
package memory
