// Package vectorindex stores chunk embeddings partitioned by namespace. Each
// notebook gets its own namespace; queries never cross namespaces.
package vectorindex

import "context"

// Document is one embedded chunk with its retrieval metadata.
type Document struct {
	ID     string
	Vector []float32
	Meta   map[string]any
}

// Match is a retrieval hit.
type Match struct {
	Score float32
	Meta  map[string]any
}

// Index is the namespaced vector store contract. Upsert creates the backing
// namespace on first use; DropNamespace is the only deletion granularity.
type Index interface {
	Upsert(ctx context.Context, namespace string, docs []Document) error
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error)
	DropNamespace(ctx context.Context, namespace string) error
}
