package graph

import (
	"net"
	"net/url"
	"strings"
)

// carrier-grade NAT space, RFC 6598
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var internalHostSuffixes = []string{
	".internal",
	".local",
	".localhost",
	".lan",
	".home.arpa",
}

// IsInternalURL reports whether rawURL points somewhere the platform's fetchers cannot reach:
// loopback, private, shared (CGNAT) or link-local addresses and private network host names.
// Unparsable URLs and URLs without a host are treated as internal.
func IsInternalURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return true
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "localhost" {
		return true
	}
	for _, suffix := range internalHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// single label names only resolve inside a private network
		return !strings.Contains(host, ".")
	}

	return ip.IsLoopback() || ip.IsPrivate() || sharedAddressSpace.Contains(ip) ||
		ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
