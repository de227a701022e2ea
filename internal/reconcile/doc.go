// Package reconcile merges a freshly observed child collection into what is
// already persisted for an owner entity, producing the minimal set of
// create/update/delete (or link/unlink) calls.
//
// The algorithms are storage-agnostic: callers pass a small store interface
// bound to the owner, and the package never decides what an owner is.
package reconcile
