// Package network builds the HTTP clients used for metadata and media requests.
package network

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// ExhaustionTTL is how long a rate-limited bind address rests before reuse.
const ExhaustionTTL = 24 * time.Hour

// NewHTTPClient returns a client with the given timeout. When bindAddresses
// is set, outgoing connections rotate over those local addresses and an
// address answering 429 is rested for ExhaustionTTL.
func NewHTTPClient(bindAddresses string, timeout time.Duration) (*http.Client, error) {
	if strings.TrimSpace(bindAddresses) == "" {
		return &http.Client{Transport: newTransport(defaultDialer().DialContext), Timeout: timeout}, nil
	}
	rotator, err := NewIPRotator(bindAddresses, ExhaustionTTL)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: NewRotatingTransport(rotator), Timeout: timeout}, nil
}

// NewRotatingTransport creates a transport that dials from the rotator's next
// address and marks it exhausted when a response is 429 Too Many Requests.
func NewRotatingTransport(rotator *IPRotator) http.RoundTripper {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		local, err := rotator.Next()
		if err != nil {
			return nil, err
		}
		dialer := defaultDialer()
		dialer.LocalAddr = local
		return dialer.DialContext(ctx, network, addr)
	}
	return &exhaustionTransport{base: newTransport(dial), rotator: rotator}
}

func defaultDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}

func newTransport(dial func(ctx context.Context, network, addr string) (net.Conn, error)) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dial,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type exhaustionTransport struct {
	base    http.RoundTripper
	rotator *IPRotator
}

func (t *exhaustionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		t.rotator.MarkExhausted()
	}
	return resp, err
}
