// Package errs holds the error classes shared by the dispatch engine.
//
// Validation failures (required, invalid, out of range) and lookups that find
// nothing map to client errors at the HTTP edge. The three dispatch-specific
// classes differ in how a caller reacts:
//
//	RuleViolationError       rejected with a reason code, never retried
//	InvariantViolationError  structural edit refused, retry after the next checkpoint
//	CorruptionError          persisted state is inconsistent, an operator must step in
//
// Every typed error unwraps to exactly one sentinel, so classification is
// errors.Is(err, errs.ErrRuleViolation) and friends.
//
// Recoverable conditions (no candidates, optimizer timeout, flush failure) are
// plain sentinels owned by the use cases that produce them.
package errs
