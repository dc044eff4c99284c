// Package pending correlates asynchronous command responses with the
// request that caused them.
//
// A Table maps an outstanding command, identified by a comparable key, to
// the completion callback supplied when the command was sent. When a
// matching response (or a terminal error) arrives, Resolve removes the entry
// and invokes the callback exactly once, after the table lock has been
// released:
//
//	table := pending.NewTable[avdecc.CorrelationKey, *protocol.AemAecpdu]("aem",
//	    pending.WithTimeout(250*time.Millisecond))
//	defer table.Close()
//
//	if err := table.TryRegister(key, onResult); err != nil {
//	    return err
//	}
//	// later, on the receive goroutine
//	table.Resolve(key, response, nil)
//
// # Callback Contract
//
// Callbacks run synchronously on the goroutine that calls Resolve or Expire,
// which in a protocol interface is the transport receive goroutine. They must
// not block. A callback may register new keys on the same table; the lock is
// never held while a callback runs.
//
// # Lifecycle
//
// Every registered key is eventually resolved, cancelled, expired, or
// abandoned by Close. Close never invokes callbacks. Resolve on a key that is
// not present (late duplicate, spurious frame, post-teardown) returns false
// and is otherwise silent.
package pending
