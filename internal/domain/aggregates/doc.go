// Package aggregates defines domain-facing aggregate contracts for the deal
// catalog.
//
// These contracts avoid persistence details and describe the write boundaries
// where reconciliation invariants must hold atomically: one observed deal,
// retailer or store is applied all-or-nothing.
package aggregates
