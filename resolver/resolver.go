// Package resolver turns a host and service name into the ordered list
// of socket addresses a caller can try in turn, standing in for
// original_source/io_context.hpp's address_resolver (a thin wrapper
// over getaddrinfo with a next_entry-walked linked list).
//
// Go's standard resolver already returns every candidate address in
// one call, so there is no multi-entry iterator state to hold onto
// between calls the way address_info.next_entry needs one; Resolve
// just returns the full, ordered slice.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrResolve wraps any failure from the underlying host/port lookup.
var ErrResolve = errors.New("resolver: address resolution failed")

// Endpoint is one resolved candidate: an AF_INET or AF_INET6 sockaddr
// ready to hand to netio.Listen or AsyncFile.Connect.
type Endpoint struct {
	Addr unix.Sockaddr
	IP   net.IP
	Port int
}

// Resolve looks up host and service (a port number or a service name
// like "http") and returns every resolved candidate in the order the
// system resolver returned them — the same ordering address_resolver's
// ai_next chain preserves.
func Resolve(ctx context.Context, host, service string) ([]Endpoint, error) {
	port, err := lookupPort(service)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolve, err)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolve, err)
	}

	endpoints := make([]Endpoint, 0, len(ips))
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var addr [4]byte
			copy(addr[:], v4)
			endpoints = append(endpoints, Endpoint{
				Addr: &unix.SockaddrInet4{Addr: addr, Port: port},
				IP:   ip,
				Port: port,
			})
			continue
		}
		var addr [16]byte
		copy(addr[:], ip.To16())
		endpoints = append(endpoints, Endpoint{
			Addr: &unix.SockaddrInet6{Addr: addr, Port: port},
			IP:   ip,
			Port: port,
		})
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: no addresses for %s", ErrResolve, host)
	}
	return endpoints, nil
}

func lookupPort(service string) (int, error) {
	if n, err := strconv.Atoi(service); err == nil {
		return n, nil
	}
	return net.LookupPort("tcp", service)
}

// ListenAddr is a convenience wrapper for the common case of binding a
// literal IPv4/IPv6 address with no DNS lookup required.
func ListenAddr(ip net.IP, port int) (unix.Sockaddr, error) {
	if v4 := ip.To4(); v4 != nil {
		var addr [4]byte
		copy(addr[:], v4)
		return &unix.SockaddrInet4{Addr: addr, Port: port}, nil
	}
	if v6 := ip.To16(); v6 != nil {
		var addr [16]byte
		copy(addr[:], v6)
		return &unix.SockaddrInet6{Addr: addr, Port: port}, nil
	}
	return nil, fmt.Errorf("%w: invalid IP %v", ErrResolve, ip)
}
