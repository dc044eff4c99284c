//go:build !linux

package commands

import (
	"errors"

	"github.com/opd-ai/avdecc/transport"
)

func openRaw(string) (transport.Transport, error) {
	return nil, errors.New("raw transport is only available on linux")
}
