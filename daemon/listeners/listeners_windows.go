package listeners

import (
	"crypto/tls"
	"net"

	"github.com/docker/go-connections/sockets"
	"github.com/pkg/errors"
)

// Init creates new listeners for the server.
func Init(proto, addr string, tlsConfig *tls.Config) ([]net.Listener, error) {
	switch proto {
	case "tcp":
		l, err := sockets.NewTCPSocket(addr, tlsConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to listen on %s", addr)
		}
		return []net.Listener{l}, nil
	default:
		return nil, errors.Errorf("invalid protocol format: windows only supports tcp, got %q", proto)
	}
}
