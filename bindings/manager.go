package bindings

import (
	"sync"

	"github.com/opd-ai/avdecc"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
)

// Handle identifies a protocol interface registered with a Manager. The
// zero Handle is never issued.
type Handle int

// Manager maps handles to protocol interfaces.
type Manager struct {
	mu         sync.RWMutex
	interfaces map[Handle]*avdecc.ProtocolInterface
	nextHandle Handle
}

// NewManager returns an empty handle table.
func NewManager() *Manager {
	return &Manager{
		interfaces: make(map[Handle]*avdecc.ProtocolInterface),
		nextHandle: 1,
	}
}

// Create registers pi and returns its handle. A nil pi returns the zero
// Handle.
func (m *Manager) Create(pi *avdecc.ProtocolInterface) Handle {
	if pi == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.nextHandle
	m.nextHandle++
	m.interfaces[h] = pi

	logrus.WithFields(logrus.Fields{
		"function": "Manager.Create",
		"handle":   int(h),
	}).Debug("Protocol interface registered")
	return h
}

// Get returns the protocol interface behind h.
func (m *Manager) Get(h Handle) (*avdecc.ProtocolInterface, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pi, ok := m.interfaces[h]
	return pi, ok
}

// Len returns the number of live handles.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.interfaces)
}

// Destroy closes the protocol interface behind h and releases the handle.
// Outstanding commands are abandoned without their callbacks running.
//
//export AvdeccProtocolInterfaceDestroy
func (m *Manager) Destroy(h Handle) avdecc.InterfaceError {
	m.mu.Lock()
	pi, ok := m.interfaces[h]
	delete(m.interfaces, h)
	m.mu.Unlock()

	if !ok {
		return avdecc.ErrInvalidProtocolInterfaceHandle
	}

	if err := pi.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Manager.Destroy",
			"handle":   int(h),
			"error":    err.Error(),
		}).Warn("Failed to close protocol interface")
		return avdecc.ErrorCode(err)
	}
	return avdecc.ErrNoError
}

// CloseAll destroys every registered handle.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	handles := make([]Handle, 0, len(m.interfaces))
	for h := range m.interfaces {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	for _, h := range handles {
		m.Destroy(h)
	}
}

// dispatch runs send against the interface behind h and converts the
// outcome to a code.
func (m *Manager) dispatch(function string, h Handle, send func(pi *avdecc.ProtocolInterface) error) (code avdecc.InterfaceError) {
	pi, ok := m.Get(h)
	if !ok {
		return avdecc.ErrInvalidProtocolInterfaceHandle
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": function,
				"handle":   int(h),
				"panic":    r,
			}).Error("Recovered panic during dispatch")
			code = avdecc.ErrInvalidProtocolInterfaceHandle
		}
	}()

	return avdecc.ErrorCode(send(pi))
}

// wrapResult adapts a code-based callback to the error-based one the
// protocol interface expects.
func wrapResult[R any](onResult func(response R, code avdecc.InterfaceError)) func(R, error) {
	if onResult == nil {
		return nil
	}
	return func(response R, err error) {
		onResult(response, avdecc.ErrorCode(err))
	}
}

// SendAcmpCommand sends pdu through the interface behind h.
//
//export AvdeccHandleSendAcmpCommand
func (m *Manager) SendAcmpCommand(h Handle, pdu *protocol.Acmpdu, onResult func(response *protocol.Acmpdu, code avdecc.InterfaceError)) avdecc.InterfaceError {
	return m.dispatch("Manager.SendAcmpCommand", h, func(pi *avdecc.ProtocolInterface) error {
		return pi.SendAcmpCommand(pdu, wrapResult(onResult))
	})
}

// SendAemAecpCommand sends pdu through the interface behind h.
//
//export AvdeccHandleSendAemAecpCommand
func (m *Manager) SendAemAecpCommand(h Handle, pdu *protocol.AemAecpdu, onResult func(response *protocol.AemAecpdu, code avdecc.InterfaceError)) avdecc.InterfaceError {
	return m.dispatch("Manager.SendAemAecpCommand", h, func(pi *avdecc.ProtocolInterface) error {
		return pi.SendAemAecpCommand(pdu, wrapResult(onResult))
	})
}

// SendMvuAecpCommand sends pdu through the interface behind h.
//
//export AvdeccHandleSendMvuAecpCommand
func (m *Manager) SendMvuAecpCommand(h Handle, pdu *protocol.MvuAecpdu, onResult func(response *protocol.MvuAecpdu, code avdecc.InterfaceError)) avdecc.InterfaceError {
	return m.dispatch("Manager.SendMvuAecpCommand", h, func(pi *avdecc.ProtocolInterface) error {
		return pi.SendMvuAecpCommand(pdu, wrapResult(onResult))
	})
}
