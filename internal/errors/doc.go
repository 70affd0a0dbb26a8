// Package errors provides structured, coded errors for domkit.
//
// domkit is a convenience layer: lookups and updates degrade to nil, empty
// collections or partial application instead of failing the caller. The
// errors in this package are what gets logged (and, for the wait helpers,
// returned) when that happens.
//
// # Error Categories
//
// Errors are organized into categories:
//   - input: invalid lookup keys and malformed selectors
//   - update: a single entry of an update mapping failed to apply
//   - reactive: a binding failed to evaluate or apply
//   - lifecycle: use of a destroyed helper, wait timeouts
//   - observer: a mutation record could not be processed
//   - config: invalid options or configuration files
//
// # Error Codes
//
// Each error has a unique code (e.g., "E001") that maps to a short message,
// a detailed explanation and a documentation URL.
//
// # Usage
//
//	err := errors.New("E002").
//	    WithDetail(fmt.Sprintf("selector %q", sel)).
//	    Wrap(parseErr)
//
//	logger.Warn(err.Message, "error", err)
package errors
