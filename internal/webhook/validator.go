package webhook

import (
	"errors"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrInvalidScheme    = errors.New("only HTTPS allowed")
	ErrEmptyHost        = errors.New("URL must have a host")
	ErrLocalhostBlocked = errors.New("localhost not allowed")
	ErrPrivateIP        = errors.New("private IP addresses not allowed")
	ErrInvalidPort      = errors.New("only port 443 allowed")
)

// blockedPrefixes covers ranges netip has no predicate for.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("198.18.0.0/15"),
}

// lookupHost is swapped in tests.
var lookupHost = net.LookupHost

// ValidateTargetURL rejects webhook endpoints that could reach internal
// services: anything but HTTPS on 443, localhost names, and hosts that are
// or resolve to private addresses. With allowPrivate only the scheme and
// host are checked, which suits a receiver on a developer machine.
func ValidateTargetURL(target string, allowPrivate bool) error {
	u, err := url.Parse(target)
	if err != nil {
		return ErrInvalidURL
	}
	host := u.Hostname()

	switch {
	case u.Scheme == "https":
	case u.Scheme == "http" && allowPrivate:
	default:
		return ErrInvalidScheme
	}
	if host == "" {
		return ErrEmptyHost
	}
	if allowPrivate {
		return nil
	}

	if isLocalName(host) {
		return ErrLocalhostBlocked
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return ErrPrivateIP
		}
	} else if addrs, err := lookupHost(host); err == nil {
		// Unresolvable hosts fail at delivery time instead.
		for _, a := range addrs {
			if addr, err := netip.ParseAddr(a); err == nil && isBlockedAddr(addr) {
				return ErrPrivateIP
			}
		}
	}

	if port := u.Port(); port != "" && port != "443" {
		return ErrInvalidPort
	}
	return nil
}

func isLocalName(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal")
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ExtractHost returns the host of target for logging. Paths and queries may
// carry secrets and are never logged.
func ExtractHost(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "(invalid)"
	}
	return u.Host
}
