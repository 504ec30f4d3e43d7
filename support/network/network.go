// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package network contains TCP address and argument helpers for network
// streams.
package network

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// DefaultPort is the TCP port used when none is specified.
const DefaultPort = 5000

// ProtocolTCP is the only supported stream protocol.
const ProtocolTCP = "tcp"

// ParseProtocol validates a protocol name. Only "tcp" is supported.
func ParseProtocol(v string) (string, error) {
	if v != ProtocolTCP {
		return "", errors.Errorf("unsupported protocol %q", v)
	}
	return v, nil
}

// ParsePort parses a TCP port number in [1, 65535]. Decimal, "0x" hex, and
// leading-zero octal forms are accepted.
func ParsePort(v string) (int, error) {
	n, err := strconv.ParseUint(v, 0, 16)
	if err != nil || n == 0 {
		return 0, errors.Errorf("invalid port %q", v)
	}
	return int(n), nil
}

// ParseIP4Address parses the string, v, into an IPv4 address. If v failed to
// parse, or if v did not parse into an IPv4 address, an error will be returned.
func ParseIP4Address(v string) (net.IP, error) {
	ip := net.ParseIP(v)
	if ip == nil {
		return nil, errors.Errorf("could not parse IP address %q", v)
	}

	ip = ip.To4()
	if ip == nil {
		return nil, errors.Errorf("unable to get IPv4 address for %q", v)
	}

	return ip, nil
}

// ResolveTCP4 resolves host to its first IPv4 address and pairs it with port.
//
// host may be a literal IPv4 address or a hostname. Hostnames that resolve
// only to non-IPv4 addresses are an error.
func ResolveTCP4(ctx context.Context, r *net.Resolver, host string, port int) (*net.TCPAddr, error) {
	if ip, err := ParseIP4Address(host); err == nil {
		return &net.TCPAddr{IP: ip, Port: port}, nil
	}

	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %q", host)
	}
	for _, a := range addrs {
		if ip := a.IP.To4(); ip != nil {
			return &net.TCPAddr{IP: ip, Port: port}, nil
		}
	}
	return nil, errors.Errorf("%s: no IPv4 address", host)
}
