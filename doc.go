// Package avdecc implements the controller side of IEEE 1722.1 command
// correlation: it sends ACMP, AEM and Milan vendor-unique (MVU) commands
// and routes each asynchronous response to the callback that is waiting
// for it.
//
// # Getting Started
//
// Create a transport, then a protocol interface on top of it:
//
//	t, err := transport.NewUDPTransport(":17221", "239.255.17.22:17221", mac)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pi, err := avdecc.New(t, avdecc.NewOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pi.Close()
//
//	cmd := &protocol.AemAecpdu{
//	    MessageType:        protocol.AecpAemCommand,
//	    TargetEntityID:     target,
//	    ControllerEntityID: controller,
//	    SequenceID:         pi.NextSequenceID(),
//	    CommandType:        protocol.AemCommandEntityAvailable,
//	}
//	err = pi.SendAemAecpCommand(cmd, func(resp *protocol.AemAecpdu, err error) {
//	    // Called exactly once: with the response, or with ErrTimeout.
//	})
//
// Blocking variants take a context:
//
//	resp, err := pi.AemAecpCommand(ctx, cmd)
//
// # Correlation
//
// Every command family has its own table keyed by the controller entity ID
// and sequence ID carried in the PDU. Sequence ID zero is reserved and is
// rejected with ErrInvalidParameters, as is a key that is already pending.
// Responses that match nothing, including duplicates and late arrivals,
// are dropped silently.
//
// An AEM response with status IN_PROGRESS restarts the command's deadline
// instead of completing it. Unsolicited AEM notifications are passed to the
// OnAecpUnsolicitedResponse callback.
//
// # Registration Order
//
// Options.Order chooses whether the correlation entry is stored before or
// after the frame is handed to the transport. RegisterBeforeSend, the
// default, matches a response that arrives while Send is still running and
// removes the entry again when Send fails. SendBeforeRegister never stores
// an entry for a frame that was not sent, but a response that beats the
// registration is lost and the command ends in ErrTimeout.
//
// # Callbacks
//
// Result callbacks run on the transport's receive goroutine or on a sweep
// goroutine, never while a table lock is held, so a callback may issue the
// next command. They should return quickly. A callback that panics is
// recovered and logged.
//
// # Errors
//
// Failures are reported as InterfaceError codes wrapped in *CommandError.
// ErrorCode converts any error returned by this package to its code.
package avdecc
