package audit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
)

// ClientInfo identifies the caller of the current request.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type contextKey struct {
	name string
}

var clientInfoKey = &contextKey{"ClientInfo"}

// WithClient stores client metadata for recorders further down the call chain.
func WithClient(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey, info)
}

// ClientFrom returns the metadata stored by WithClient, or the zero value.
func ClientFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey).(ClientInfo)
	return info
}

// ClientInfoMiddleware attaches the caller's IP and user agent to the request context.
func ClientInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClient(r.Context(), ClientInfo{
			IPAddress: ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var (
	trustMu        sync.RWMutex
	trustedProxies []*net.IPNet
)

// SetTrustedProxies lists the reverse proxies, as CIDRs or bare IPs, whose
// X-Forwarded-For and X-Real-IP headers ClientIP believes. With none set
// only the peer address counts.
func SetTrustedProxies(entries []string) error {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		nets = append(nets, n)
	}

	trustMu.Lock()
	defer trustMu.Unlock()
	trustedProxies = nets
	return nil
}

func isTrustedProxy(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	trustMu.RLock()
	defer trustMu.RUnlock()
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address. When the peer is a trusted proxy it
// walks X-Forwarded-For from the right and returns the first hop that is
// not itself a trusted proxy, falling back to X-Real-IP.
func ClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !isTrustedProxy(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !isTrustedProxy(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}
