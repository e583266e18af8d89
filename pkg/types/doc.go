// Package types defines the Store interface, record and relation entities,
// result types, and standard errors for the Loom record store.
package types
