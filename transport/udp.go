package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/avdecc/protocol"
	"github.com/sirupsen/logrus"
)

// maxFrameSize covers the largest AECPDU plus Ethernet header and VLAN tag.
const maxFrameSize = 1522

// readTimeout bounds each blocking read so the loop notices Close.
const readTimeout = 100 * time.Millisecond

// UDPTransport tunnels AVDECC Ethernet frames in UDP datagrams.
// It satisfies the Transport interface.
type UDPTransport struct {
	conn      net.PacketConn
	group     net.Addr
	mac       net.HardwareAddr
	handlers  *handlerSet
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewUDPTransport creates a UDP transport listening on listenAddr. Frames
// sent to the multicast group go to groupAddr; when groupAddr is an IP
// multicast address the transport joins it and listenAddr is ignored. mac
// is the source address written into every frame, and frames carrying it
// are not delivered back to this transport.
func NewUDPTransport(listenAddr, groupAddr string, mac net.HardwareAddr) (*UDPTransport, error) {
	if len(mac) != 6 {
		return nil, fmt.Errorf("%w: %q", protocol.ErrInvalidHardwareAddr, mac)
	}

	var group *net.UDPAddr
	if groupAddr != "" {
		var err error
		group, err = net.ResolveUDPAddr("udp", groupAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group address %q: %w", groupAddr, err)
		}
	}

	conn, err := listenUDP(listenAddr, group)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &UDPTransport{
		conn:     conn,
		mac:      append(net.HardwareAddr(nil), mac...),
		handlers: newHandlerSet(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if group != nil {
		t.group = group
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewUDPTransport",
		"local":    conn.LocalAddr().String(),
		"group":    groupAddr,
		"mac":      t.mac.String(),
	}).Info("UDP transport listening")

	go t.processPackets()

	return t, nil
}

func listenUDP(listenAddr string, group *net.UDPAddr) (net.PacketConn, error) {
	if group != nil && group.IP.IsMulticast() {
		conn, err := net.ListenMulticastUDP("udp", nil, group)
		if err != nil {
			return nil, fmt.Errorf("failed to join %s: %w", group, err)
		}
		return conn, nil
	}

	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", listenAddr, err)
	}
	return conn, nil
}

// RegisterHandler registers a handler for an AVTP subtype.
func (t *UDPTransport) RegisterHandler(subtype protocol.Subtype, handler Handler) {
	t.handlers.register(subtype, handler)
}

// Send frames pdu and writes it to addr, or to the group address when addr
// is nil.
func (t *UDPTransport) Send(pdu []byte, addr net.Addr) error {
	if t.ctx.Err() != nil {
		return newTransportError("send", addr, ErrTransportClosed)
	}
	if addr == nil {
		if t.group == nil {
			return newTransportError("send", nil, fmt.Errorf("%w: no group address configured", ErrUnsupportedAddr))
		}
		addr = t.group
	}

	frame, err := protocol.EncodeFrame(protocol.MulticastMAC, t.mac, pdu)
	if err != nil {
		return newTransportError("send", addr, err)
	}

	if _, err := t.conn.WriteTo(frame, addr); err != nil {
		return newTransportError("send", addr, err)
	}
	return nil
}

// Close shuts down the transport and waits for the receive loop to exit.
func (t *UDPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		err = t.conn.Close()
		<-t.done
	})
	return err
}

// processPackets handles incoming frames until Close.
func (t *UDPTransport) processPackets() {
	defer close(t.done)
	buffer := make([]byte, maxFrameSize)

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
			t.processIncomingPacket(buffer)
		}
	}
}

// processIncomingPacket reads and dispatches a single datagram.
func (t *UDPTransport) processIncomingPacket(buffer []byte) {
	_ = t.conn.SetReadDeadline(time.Now().Add(readTimeout))

	n, addr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		t.handleReadError(err)
		return
	}

	t.handlers.decodeAndDispatch(buffer[:n], t.mac, addr)
}

// handleReadError logs read failures other than deadline expiry.
func (t *UDPTransport) handleReadError(err error) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if t.ctx.Err() != nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "UDPTransport.processIncomingPacket",
		"error":    err.Error(),
	}).Warn("UDP read failed")
}

// LocalAddr returns the local address the transport is listening on.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// HardwareAddr returns the source MAC written into outgoing frames.
func (t *UDPTransport) HardwareAddr() net.HardwareAddr {
	return t.mac
}
