package crawler

import (
	"net"
	"net/url"

	"github.com/archon-iirc/archon/internal/apperr"
)

// guardURL rejects loopback, link-local, RFC1918 and non-http(s) targets
// before any request is issued, per spec.md §4.2.
func guardURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.Validation("malformed crawl URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.Validation("crawl URL scheme must be http or https", nil)
	}
	host := u.Hostname()
	if host == "" {
		return apperr.Validation("crawl URL has no host", nil)
	}
	if host == "localhost" {
		return apperr.Validation("crawl URL resolves to a disallowed loopback host", nil)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return apperr.Validation("crawl URL host does not resolve", err)
	}
	for _, ip := range ips {
		if isDisallowedIP(ip) {
			return apperr.Validation("crawl URL resolves to a disallowed private/loopback address", nil)
		}
	}
	return nil
}

func isDisallowedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	return ip.IsPrivate()
}
