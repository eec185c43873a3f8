package cluster

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
)

// Address schemes understood by Dial and Listen. An address without a scheme
// is treated as TCP.
const (
	schemeTCP   = "tcp://"
	schemeVsock = "vsock://"
)

// Dial connects to a member address: "host:port", "tcp://host:port" or
// "vsock://cid:port".
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	if rest, ok := strings.CutPrefix(addr, schemeVsock); ok {
		cid, port, err := parseVsock(rest)
		if err != nil {
			return nil, err
		}
		conn, err := dialContext(ctx, func() (net.Conn, error) {
			return vsock.Dial(cid, port, nil)
		})
		if err != nil {
			return nil, fmt.Errorf("dial vsock %d:%d: %w", cid, port, err)
		}
		return conn, nil
	}

	hostport := strings.TrimPrefix(addr, schemeTCP)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", hostport, err)
	}
	return conn, nil
}

// dialContext runs a dial that takes no context and abandons it when ctx is
// done first. A connection that arrives after that is closed.
func dialContext(ctx context.Context, dial func() (net.Conn, error)) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := dial()
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Listen opens a listener for a worker address: "host:port", "tcp://host:port"
// or "vsock://:port" (the context ID is always the local one).
func Listen(addr string) (net.Listener, error) {
	if rest, ok := strings.CutPrefix(addr, schemeVsock); ok {
		_, portStr, found := strings.Cut(rest, ":")
		if !found {
			portStr = rest
		}
		port, err := strconv.ParseUint(portStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse vsock port %q: %w", portStr, err)
		}
		l, err := vsock.Listen(uint32(port), nil)
		if err != nil {
			return nil, fmt.Errorf("listen vsock port %d: %w", port, err)
		}
		return l, nil
	}

	hostport := strings.TrimPrefix(addr, schemeTCP)
	l, err := net.Listen("tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", hostport, err)
	}
	return l, nil
}

// parseVsock parses "cid:port".
func parseVsock(s string) (cid, port uint32, err error) {
	cidStr, portStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("vsock address %q: want cid:port", s)
	}
	c, err := strconv.ParseUint(cidStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parse vsock cid %q: %w", cidStr, err)
	}
	p, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parse vsock port %q: %w", portStr, err)
	}
	return uint32(c), uint32(p), nil
}
