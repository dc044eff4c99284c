//go:build linux

package commands

import (
	"github.com/opd-ai/avdecc/transport"
)

func openRaw(iface string) (transport.Transport, error) {
	t, err := transport.NewRawTransport(iface)
	if err != nil {
		return nil, err
	}
	return t, nil
}
