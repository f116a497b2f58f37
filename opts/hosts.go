package opts

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultHTTPPort is the port isoserved listens on when none is given.
	DefaultHTTPPort = 3000
	// DefaultHTTPHost is the host isoserved binds to when none is given. An
	// empty host listens on every interface, so the server is reachable at
	// http://localhost:3000 over both IPv4 and IPv6.
	DefaultHTTPHost = ""
	// DefaultUnixSocket is the path used for a "unix://" host without a path.
	DefaultUnixSocket = "/var/run/isoserve.sock"
)

var (
	// DefaultTCPHost is the TCP host isoserved listens on by default.
	DefaultTCPHost = "tcp://" + net.JoinHostPort(DefaultHTTPHost, strconv.Itoa(DefaultHTTPPort))
	// DefaultHost is the host used when no host is configured.
	DefaultHost = DefaultTCPHost
)

// ValidateHost validates that the specified string is a valid host and returns it.
func ValidateHost(val string) (string, error) {
	host := strings.TrimSpace(val)
	// The empty string means default and is not handled by parseDaemonHost
	if host != "" {
		_, err := parseDaemonHost(host)
		if err != nil {
			return val, err
		}
	}
	return val, nil
}

// ParseHost and set defaults for a Daemon host string.
func ParseHost(val string) (string, error) {
	host := strings.TrimSpace(val)
	if host == "" {
		return DefaultHost, nil
	}
	return parseDaemonHost(val)
}

// parseDaemonHost parses the specified address and returns an address that will be used as the host.
// Depending on the address specified, this may return one of the global Default* strings defined in hosts.go.
func parseDaemonHost(addr string) (string, error) {
	addrParts := strings.SplitN(addr, "://", 2)
	if len(addrParts) == 1 && addrParts[0] != "" {
		addrParts = []string{"tcp", addrParts[0]}
	}

	switch addrParts[0] {
	case "tcp":
		return ParseTCPAddr(addrParts[1], DefaultTCPHost)
	case "unix":
		return parseSimpleProtoAddr("unix", addrParts[1], DefaultUnixSocket)
	case "fd":
		return addr, nil
	default:
		return "", errors.Errorf("invalid bind address format: %s", addr)
	}
}

// parseSimpleProtoAddr parses and validates that the specified address is a valid
// socket address for simple protocols like unix.
// It returns a formatted socket address, either using the address parsed
// from addr, or the contents of defaultAddr if addr is a blank string.
func parseSimpleProtoAddr(proto, addr, defaultAddr string) (string, error) {
	addr = strings.TrimPrefix(addr, proto+"://")
	if strings.Contains(addr, "://") {
		return "", errors.Errorf("invalid proto, expected %s: %s", proto, addr)
	}
	if addr == "" {
		addr = defaultAddr
	}
	return proto + "://" + addr, nil
}

// ParseTCPAddr parses and validates that the specified address is a valid TCP
// address. It returns a formatted TCP address, either using the address parsed
// from tryAddr, or the contents of defaultAddr if tryAddr is a blank string.
// tryAddr is expected to have already been Trim()'d
// defaultAddr must be in the full `tcp://host:port` form
func ParseTCPAddr(tryAddr string, defaultAddr string) (string, error) {
	if tryAddr == "" || tryAddr == "tcp://" {
		return defaultAddr, nil
	}
	addr := strings.TrimPrefix(tryAddr, "tcp://")
	if strings.Contains(addr, "://") || addr == "" {
		return "", errors.Errorf("invalid proto, expected tcp: %s", tryAddr)
	}

	defaultAddr = strings.TrimPrefix(defaultAddr, "tcp://")
	defaultHost, defaultPort, err := net.SplitHostPort(defaultAddr)
	if err != nil {
		return "", err
	}
	u, err := url.Parse("tcp://" + addr)
	if err != nil {
		return "", err
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		// try port addition once
		host, port, err = net.SplitHostPort(net.JoinHostPort(u.Host, defaultPort))
	}
	if err != nil {
		return "", errors.Errorf("invalid bind address format: %s", tryAddr)
	}

	if u.Path != "" {
		return "", errors.Errorf("invalid bind address (%s): should not contain a path element", tryAddr)
	}
	if host == "" {
		host = defaultHost
	}
	if port == "" {
		port = defaultPort
	}
	p, err := strconv.Atoi(port)
	if err != nil && p == 0 {
		return "", errors.Errorf("invalid bind address format: %s", tryAddr)
	}

	return "tcp://" + net.JoinHostPort(host, port), nil
}
