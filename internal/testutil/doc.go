// Package testutil holds helpers shared by tests across packages: scripted
// dispatch IDs, loggers that are safe to inspect while saga goroutines are
// still writing, and a gate for holding asynchronous handlers open.
//
// testutil imports nothing internal so any package's tests may use it.
package testutil
