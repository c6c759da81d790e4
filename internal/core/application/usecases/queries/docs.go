// Package queries contains the read side of the dispatch engine. Handlers read
// the database directly with raw SQL and return flat response structs; they
// never load aggregates and never take row locks.
package queries
