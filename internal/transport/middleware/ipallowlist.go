package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/transport"
)

// AdminPathPrefix marks the routes covered by the admin IP allowlist.
const AdminPathPrefix = "/admin/"

// IPAllowlist holds single addresses and CIDR ranges.
type IPAllowlist struct {
	prefixes []netip.Prefix
}

// NewIPAllowlist parses entries such as "10.0.0.0/8" or "192.168.1.20".
// Single addresses become host-sized prefixes.
func NewIPAllowlist(entries []string) (*IPAllowlist, error) {
	a := &IPAllowlist{}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			a.prefixes = append(a.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		a.prefixes = append(a.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return a, nil
}

// Empty reports whether no entries were configured.
func (a *IPAllowlist) Empty() bool {
	return a == nil || len(a.prefixes) == 0
}

func (a *IPAllowlist) Allows(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the first X-Forwarded-For address, or the peer address.
func ClientIP(r *http.Request) (netip.Addr, bool) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.Unmap(), true
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// AdminIPAllowlist rejects requests under /admin/ from addresses outside the
// allowlist. With an empty allowlist every address is accepted.
func AdminIPAllowlist(allow *IPAllowlist, logger *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allow.Empty() || !strings.HasPrefix(r.URL.Path, AdminPathPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			addr, ok := ClientIP(r)
			if !ok || !allow.Allows(addr) {
				logger.WarnContext(r.Context(), "admin request from address outside allowlist",
					"client_ip", addr.String(), "path", r.URL.Path)
				base.WriteAppError(w, internal.ErrIPNotAllowed)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
