// Package aggregates contains infrastructure implementations of domain aggregate contracts.
//
// Implementations compose table-level repos from internal/data/repos, own the
// transaction boundary of every reconciliation write, and keep their natural-key
// caches in step with committed rows.
package aggregates
