package download

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
)

const downloadPath = "/v1/files/download/"

var (
	ErrIPv6NotSupported = errors.New("ipv6 is not supported")
	ErrInvalidPrefix    = errors.New("download url prefix must be of the form http(s)://host[:port]")
)

// Prefix is the scheme, host and optional port that download links are built from.
type Prefix struct {
	Scheme string
	Host   string
	Port   int
}

// Resolve builds the prefix once at startup. An explicit prefix wins; otherwise it is
// derived from the address the server binds to.
func Resolve(explicit string, bindAddr string) (Prefix, error) {
	if explicit != "" {
		return parsePrefix(explicit)
	}

	addrPort, err := netip.ParseAddrPort(bindAddr)
	if err != nil {
		return Prefix{}, fmt.Errorf("invalid bind address %q: %w", bindAddr, err)
	}
	addr := addrPort.Addr()
	if addr.Is6() {
		return Prefix{}, ErrIPv6NotSupported
	}

	host := addr.String()
	if addr.IsUnspecified() {
		host = "localhost"
	}

	return Prefix{Scheme: "http", Host: host, Port: int(addrPort.Port())}, nil
}

func parsePrefix(raw string) (Prefix, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Prefix{}, fmt.Errorf("%w: %s", ErrInvalidPrefix, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Prefix{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidPrefix, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return Prefix{}, fmt.Errorf("%w: missing host", ErrInvalidPrefix)
	}

	prefix := Prefix{Scheme: parsed.Scheme, Host: parsed.Hostname()}
	if portValue := parsed.Port(); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			return Prefix{}, fmt.Errorf("%w: invalid port %q", ErrInvalidPrefix, portValue)
		}
		prefix.Port = port
	}

	return prefix, nil
}

func (p Prefix) String() string {
	host := p.Host
	if p.Port != 0 {
		host = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	}
	return p.Scheme + "://" + host
}

// IndexURL returns the link the named index's archive can be downloaded from.
func (p Prefix) IndexURL(name string) string {
	return p.String() + downloadPath + url.PathEscape(name)
}
