package webhook

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 10 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 5 * time.Second
	// ResponseHeaderTimeout is the time to wait for response headers.
	ResponseHeaderTimeout = 8 * time.Second
)

// Request headers.
const (
	HeaderSignature  = "X-Stacklane-Signature"
	HeaderDeliveryID = "X-Stacklane-Delivery-Id"
	HeaderEvent      = "X-Stacklane-Event"
	userAgent        = "Stacklane-Webhook/1.0"
)

// NewHTTPClient creates a client for webhook delivery. Redirects are not
// followed. Unless allowPrivate is set, connections to private addresses
// are refused after DNS resolution as well.
func NewHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	if !allowPrivate {
		dialer.Control = refusePrivate
	}
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func refusePrivate(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	if isBlockedAddr(ap.Addr()) {
		return fmt.Errorf("dial %s: %w", address, ErrPrivateIP)
	}
	return nil
}
