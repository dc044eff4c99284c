// Package bindings exposes protocol interfaces through opaque integer
// handles so that callers across a language boundary never hold Go
// pointers.
//
// Every operation returns an avdecc.InterfaceError instead of an error
// value. A handle that was never created, or was already destroyed,
// yields ErrInvalidProtocolInterfaceHandle, and so does a panic raised
// while a command is being dispatched:
//
//	m := bindings.NewManager()
//	h := m.Create(pi)
//	code := m.SendAemAecpCommand(h, cmd, func(resp *protocol.AemAecpdu, code avdecc.InterfaceError) {
//	    // code is avdecc.ErrNoError on success
//	})
//	m.Destroy(h)
package bindings
