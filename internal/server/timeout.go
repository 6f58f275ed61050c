package server

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// TimeoutPolicy assigns request deadlines per route. Routes get Default
// unless their path falls under an Exempt prefix, which runs with no
// deadline at all. The self-testing endpoints need the exemption: a full
// test run or a live call test legitimately holds its request open for
// minutes while completions and telephony webhooks trickle in, far longer
// than any sane deadline for the webhook and call-control routes.
type TimeoutPolicy struct {
	Default time.Duration
	Exempt  []string
}

// Middleware applies the policy. Cancellation is cooperative: the deadline
// cancels the request context, and handlers must watch ctx.Done().
func (p TimeoutPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range p.Exempt {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		ctx, cancel := context.WithTimeout(r.Context(), p.Default)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
