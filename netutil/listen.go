// Package netutil builds the TCP listeners the GDB and QMP servers bind to,
// with the socket options and backlog a single-client debug endpoint needs.
package netutil

import (
	"fmt"
	"net"
	"os"

	"github.com/armon/go-proxyproto"
	"golang.org/x/sys/unix"
)

// listenBacklog allows at most one pending connection, so a second
// concurrent dial attempt is refused by the kernel while one is being
// accepted.
const listenBacklog = 1

// ListenOptions configures one listener.
type ListenOptions struct {
	// Bind is the address to bind, typically "0.0.0.0" for INADDR_ANY. An
	// empty string is treated the same way.
	Bind string
	// Port is the TCP port to listen on.
	Port int64
	// ProxyProtocol wraps the listener so that accepted connections expect
	// a PROXY protocol v1/v2 header before the real payload, for embedders
	// that sit behind a TCP load balancer in front of the GDB/QMP ports.
	ProxyProtocol bool
}

// Listen opens a TCP listener with SO_REUSEADDR and SO_REUSEPORT set before
// bind and a backlog of listenBacklog. The standard library's net package
// does not expose backlog control, so the socket is built directly with
// golang.org/x/sys/unix and handed to net.FileListener.
func Listen(opts ListenOptions) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("netutil: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netutil: SO_REUSEADDR: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netutil: SO_REUSEPORT: %w", err)
	}

	ip, err := resolveBind(opts.Bind)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	sa := &unix.SockaddrInet4{Port: int(opts.Port)}
	copy(sa.Addr[:], ip.To4())

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netutil: bind %s:%d: %w", opts.Bind, opts.Port, err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netutil: listen: %w", err)
	}

	file := os.NewFile(uintptr(fd), fmt.Sprintf("rdbg-listener-%d", opts.Port))
	ln, err := net.FileListener(file)
	_ = file.Close()
	if err != nil {
		return nil, fmt.Errorf("netutil: FileListener: %w", err)
	}

	if opts.ProxyProtocol {
		ln = &proxyproto.Listener{Listener: ln}
	}

	return ln, nil
}

func resolveBind(bind string) (net.IP, error) {
	if bind == "" || bind == "0.0.0.0" {
		return net.IPv4zero, nil
	}

	ip := net.ParseIP(bind)
	if ip == nil {
		return nil, fmt.Errorf("netutil: invalid bind address %q", bind)
	}

	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("netutil: bind address %q is not IPv4", bind)
	}

	return v4, nil
}
