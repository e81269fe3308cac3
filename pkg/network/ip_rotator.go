package network

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrAllExhausted is returned when every bind address is resting after a rate limit.
var ErrAllExhausted = errors.New("all bind addresses are currently rate-limited")

// boundAddress tracks one local address and when it was last rate-limited.
type boundAddress struct {
	addr        *net.TCPAddr
	exhaustedAt time.Time
}

// IPRotator hands out local bind addresses round-robin, skipping addresses
// that were rate-limited less than the exhaustion TTL ago.
type IPRotator struct {
	mu            sync.Mutex
	addresses     []*boundAddress
	next          int
	last          *boundAddress
	exhaustionTTL time.Duration
	now           func() time.Time
}

// NewIPRotator resolves a comma-separated list of IP addresses or interface names.
func NewIPRotator(bindAddresses string, exhaustionTTL time.Duration) (*IPRotator, error) {
	rotator := &IPRotator{exhaustionTTL: exhaustionTTL, now: time.Now}
	for _, part := range strings.Split(bindAddresses, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tcpAddr, err := resolveBindAddr(part)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bind address '%s': %w", part, err)
		}
		rotator.addresses = append(rotator.addresses, &boundAddress{addr: tcpAddr})
	}
	if len(rotator.addresses) == 0 {
		return nil, fmt.Errorf("no usable addresses could be resolved from '%s'", bindAddresses)
	}
	return rotator, nil
}

// Len returns the number of configured addresses.
func (r *IPRotator) Len() int {
	return len(r.addresses)
}

// Next returns the next address that is not resting.
func (r *IPRotator) Next() (*net.TCPAddr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for i := 0; i < len(r.addresses); i++ {
		idx := (r.next + i) % len(r.addresses)
		a := r.addresses[idx]
		if !a.exhaustedAt.IsZero() && now.Sub(a.exhaustedAt) < r.exhaustionTTL {
			continue
		}
		a.exhaustedAt = time.Time{}
		r.next = (idx + 1) % len(r.addresses)
		r.last = a
		return a.addr, nil
	}
	return nil, ErrAllExhausted
}

// MarkExhausted rests the most recently handed out address.
func (r *IPRotator) MarkExhausted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last != nil {
		r.last.exhaustedAt = r.now()
	}
}

// resolveBindAddr takes a string that can be an IP address or an interface name
// and returns a resolvable *net.TCPAddr.
func resolveBindAddr(addrOrInterface string) (*net.TCPAddr, error) {
	if ip := net.ParseIP(addrOrInterface); ip != nil {
		return &net.TCPAddr{IP: ip}, nil
	}

	iface, err := net.InterfaceByName(addrOrInterface)
	if err != nil {
		return nil, fmt.Errorf("failed to find network interface '%s': %w", addrOrInterface, err)
	}
	addrs, err := iface.Addrs()
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("interface '%s' has no usable addresses", addrOrInterface)
	}

	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
			return &net.TCPAddr{IP: ip}, nil
		}
	}
	return nil, fmt.Errorf("no usable IPv4 address found for interface '%s'", addrOrInterface)
}
