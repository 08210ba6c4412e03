package ratelimit

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/beautymarket/backend/internal/httpserver"
)

// SecurityEventRecorder is the narrow slice of C12's audit writer the
// limiter needs to emit rate_limit_exceeded events. Mirrors
// internal/tenancy.SecurityEventRecorder.
type SecurityEventRecorder interface {
	RecordSecurityEvent(ctx context.Context, kind string, actorID *uuid.UUID, details map[string]any) error
}

// Middleware returns an http middleware that checks and records against the
// given family, keyed by client IP. It is meant for unauthenticated or
// pre-auth routes (login, public identity submission) where the caller has
// no principal yet to key on.
func Middleware(limiter *Limiter, events SecurityEventRecorder, family Family) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			res, err := limiter.Check(r.Context(), family, ip)
			if err != nil {
				httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "rate limit check failed")
				return
			}
			if res != nil && !res.Allowed {
				respondBlocked(w, r, events, family, ip, res)
				return
			}

			rec := &statusCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// Only count attempts that actually reached an auth/validation
			// decision (not a 5xx on our side).
			if rec.status == 0 || rec.status < 500 {
				result, err := limiter.Record(r.Context(), family, ip)
				if err == nil && result != nil && !result.Allowed {
					// Block tripped by this attempt; response already sent.
					_ = result
				}
			}
		})
	}
}

func respondBlocked(w http.ResponseWriter, r *http.Request, events SecurityEventRecorder, family Family, ip string, res *Result) {
	if err := events.RecordSecurityEvent(r.Context(), "rate_limit_exceeded", nil, map[string]any{
		"family": string(family),
		"ip":     ip,
		"path":   r.URL.Path,
	}); err != nil {
		// Best-effort: the block itself must still be enforced either way.
		_ = err
	}
	w.Header().Set("Retry-After", res.RetryAt.Format(http.TimeFormat))
	httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later")
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// IPAllowlist restricts access to the listed CIDRs/IPs. An empty list
// disables the gate entirely (used when BM_ADMIN_IP_ALLOWLIST is unset).
// Loopback and private-range addresses are always allowed.
func IPAllowlist(allowed []string) func(http.Handler) http.Handler {
	nets := make([]*net.IPNet, 0, len(allowed))
	ips := make([]net.IP, 0, len(allowed))
	for _, a := range allowed {
		if _, n, err := net.ParseCIDR(a); err == nil {
			nets = append(nets, n)
			continue
		}
		if ip := net.ParseIP(a); ip != nil {
			ips = append(ips, ip)
		}
	}

	return func(next http.Handler) http.Handler {
		if len(nets) == 0 && len(ips) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqIP := net.ParseIP(clientIP(r))
			if reqIP == nil {
				httpserver.RespondError(w, http.StatusForbidden, "forbidden", "unrecognised client address")
				return
			}
			if reqIP.IsLoopback() || reqIP.IsPrivate() {
				next.ServeHTTP(w, r)
				return
			}
			for _, ip := range ips {
				if ip.Equal(reqIP) {
					next.ServeHTTP(w, r)
					return
				}
			}
			for _, n := range nets {
				if n.Contains(reqIP) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpserver.RespondError(w, http.StatusForbidden, "forbidden", "client address not allowlisted")
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := len(fwd); i > 0 {
			for j, c := range fwd {
				if c == ',' {
					return fwd[:j]
				}
			}
			return fwd
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
