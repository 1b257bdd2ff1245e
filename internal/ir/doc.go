// Package ir is the value model for actions that come from outside Go code:
// scenario files, the CLI, and the journal.
//
// ir imports nothing internal. Values are restricted to null, string, int64,
// bool, array, and object. Floats are rejected so that canonical JSON is
// byte-stable across runs and golden traces never drift on formatting.
package ir
