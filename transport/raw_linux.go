//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/packet"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
)

// RawTransport sends and receives AVDECC frames on an Ethernet interface
// through an AF_PACKET socket. It requires CAP_NET_RAW.
type RawTransport struct {
	conn      *packet.Conn
	ifi       *net.Interface
	handlers  *handlerSet
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewRawTransport opens a raw socket on the named interface bound to the
// AVTP EtherType.
func NewRawTransport(ifaceName string) (*RawTransport, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("failed to find interface %q: %w", ifaceName, err)
	}
	if len(ifi.HardwareAddr) != 6 {
		return nil, fmt.Errorf("%w: interface %q has %q", protocol.ErrInvalidHardwareAddr, ifaceName, ifi.HardwareAddr)
	}

	conn, err := packet.Listen(ifi, packet.Raw, int(protocol.EtherType), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", ifaceName, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &RawTransport{
		conn:     conn,
		ifi:      ifi,
		handlers: newHandlerSet(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewRawTransport",
		"interface": ifi.Name,
		"mac":       ifi.HardwareAddr.String(),
	}).Info("Raw transport listening")

	go t.processPackets()

	return t, nil
}

// RegisterHandler registers a handler for an AVTP subtype.
func (t *RawTransport) RegisterHandler(subtype protocol.Subtype, handler Handler) {
	t.handlers.register(subtype, handler)
}

// Send frames pdu for addr, which must be nil (multicast) or a
// *packet.Addr naming the destination MAC.
func (t *RawTransport) Send(pdu []byte, addr net.Addr) error {
	if t.ctx.Err() != nil {
		return newTransportError("send", addr, ErrTransportClosed)
	}

	dst := protocol.MulticastMAC
	if addr != nil {
		pa, ok := addr.(*packet.Addr)
		if !ok {
			return newTransportError("send", addr, fmt.Errorf("%w: %T", ErrUnsupportedAddr, addr))
		}
		dst = pa.HardwareAddr
	}

	frame, err := protocol.EncodeFrame(dst, t.ifi.HardwareAddr, pdu)
	if err != nil {
		return newTransportError("send", addr, err)
	}

	if _, err := t.conn.WriteTo(frame, &packet.Addr{HardwareAddr: dst}); err != nil {
		return newTransportError("send", addr, err)
	}
	return nil
}

// Close shuts down the transport and waits for the receive loop to exit.
func (t *RawTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		err = t.conn.Close()
		<-t.done
	})
	return err
}

func (t *RawTransport) processPackets() {
	defer close(t.done)
	buffer := make([]byte, maxFrameSize)

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, addr, err := t.conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if (errors.As(err, &netErr) && netErr.Timeout()) || t.ctx.Err() != nil {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"function":  "RawTransport.processPackets",
				"interface": t.ifi.Name,
				"error":     err.Error(),
			}).Warn("Raw read failed")
			continue
		}

		t.handlers.decodeAndDispatch(buffer[:n], t.ifi.HardwareAddr, addr)
	}
}

// LocalAddr returns the interface's hardware address.
func (t *RawTransport) LocalAddr() net.Addr {
	return &packet.Addr{HardwareAddr: t.ifi.HardwareAddr}
}
