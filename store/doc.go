// Package store defines the persistence contracts the engine and
// session packages depend on (NodeStore, BlobStore,
// ReconciliationStore) and provides in-memory reference
// implementations suitable for tests and small deployments. A
// production driver substitutes its own implementation of the same
// interfaces without the engine or session packages changing.
package store
