// Package resolver implements the getaddrinfo-style name resolution
// spec 4.5 describes: turning a host/port pair into one or more
// candidate RawAddr values, in the order the OS resolver would try
// them.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/corenet-go/corenet/internal/executor"
)

// Candidate is one resolved address a caller's connect loop can try,
// mirroring a single getaddrinfo() result entry (spec 4.5).
type Candidate struct {
	IP       []byte
	Port     uint16
	IsV6     bool
	Canonical string
}

// Resolve looks up host and returns candidates in the OS's preferred
// order. No third-party resolver appears anywhere in the example pack
// (DNS isn't one of the domains any of the five repos touch), so this
// leans on net.Resolver -- the ambient-stack exception is recorded in
// the design ledger, not hidden.
func Resolve(ctx context.Context, host string, port uint16) ([]Candidate, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []Candidate{ipToCandidate(ip, port)}, nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("corenet: resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("corenet: resolve %q: no addresses", host)
	}

	out := make([]Candidate, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, ipToCandidate(a.IP, port))
	}
	return out, nil
}

func ipToCandidate(ip net.IP, port uint16) Candidate {
	if v4 := ip.To4(); v4 != nil {
		return Candidate{IP: append([]byte(nil), v4...), Port: port}
	}
	v6 := ip.To16()
	return Candidate{IP: append([]byte(nil), v6...), Port: port, IsV6: true}
}

// ToRawAddr adapts a Candidate into the executor's backend-agnostic
// address shape.
func (c Candidate) ToRawAddr() *executor.RawAddr {
	family := 2 // AF_INET
	if c.IsV6 {
		family = 10 // AF_INET6
	}
	return &executor.RawAddr{IP: c.IP, Port: c.Port, Family: family}
}

// String renders host:port the way net.JoinHostPort would, used in
// log fields and error messages.
func (c Candidate) String() string {
	return net.JoinHostPort(net.IP(c.IP).String(), strconv.Itoa(int(c.Port)))
}
