// Package fingerprint builds outbound transports that present a browser TLS
// ClientHello to the search provider.
package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names a TLS ClientHello shape.
type Profile string

const (
	ProfileGo      Profile = "go" // standard crypto/tls
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileRandom  Profile = "random"
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedALPN,
}

// ParseProfile maps a configuration string to a Profile. The empty string
// selects ProfileGo.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" || p == ProfileGo {
		return ProfileGo, nil
	}
	if _, ok := helloIDs[p]; !ok {
		return "", fmt.Errorf("fingerprint: unknown profile %q", s)
	}
	return p, nil
}

type options struct {
	insecure bool
}

// Option adjusts transport construction.
type Option func(*options)

// WithInsecureSkipVerify disables certificate verification. Only meant for
// tests against self-signed servers.
func WithInsecureSkipVerify() Option {
	return func(o *options) { o.insecure = true }
}

// Transport returns a RoundTripper for p. ProfileGo yields a clone of the
// default transport; other profiles perform the TLS handshake with uTLS and
// offer only http/1.1 in ALPN, since the transport speaks HTTP/1.1 over the
// resulting connection. Proxies are taken from the environment.
func Transport(p Profile, opts ...Option) (http.RoundTripper, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment

	if p == ProfileGo || p == "" {
		if o.insecure {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // test-only option
		}
		return transport, nil
	}

	helloID, ok := helloIDs[p]
	if !ok {
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}
	transport.ForceAttemptHTTP2 = false

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		spec, err := helloSpec(helloID)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}

		cfg := &utls.Config{ServerName: host, InsecureSkipVerify: o.insecure} //nolint:gosec // test-only option
		uConn := utls.UClient(tcpConn, cfg, utls.HelloCustom)
		if err := uConn.ApplyPreset(&spec); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: apply %s preset: %w", helloID.Str(), err)
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake: %w", err)
		}
		return uConn, nil
	}

	return transport, nil
}

// helloSpec builds a fresh ClientHello spec for id with ALPN narrowed to
// http/1.1. Specs hold per-connection state and must not be reused.
func helloSpec(id utls.ClientHelloID) (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return utls.ClientHelloSpec{}, fmt.Errorf("fingerprint: %s spec: %w", id.Str(), err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return spec, nil
}
