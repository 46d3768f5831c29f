// Package iox provides small I/O cleanup helpers.
package iox

import "io"

// DiscardClose closes c, dropping the error. For defers where a close
// failure has no recovery path:
//
//	defer iox.DiscardClose(conn)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc wraps c.Close for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(srv))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr runs fn, dropping the error. For non-Close cleanup such as
// Sync or Flush calls in defers:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }
