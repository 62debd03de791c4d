package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/onnwee/fizzrank/internal/middleware"
)

// Record appends an event for the admin request r. The actor and request ID
// come from the request context; the client address is anonymized before it
// is stored.
func Record(r *http.Request, repo Repository, entityType, entityID, action, outcome string) (*Entry, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	entry := LogEntry{
		ActorID:    middleware.GetUserID(r.Context()),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Outcome:    outcome,
		RequestID:  middleware.GetRequestID(r.Context()),
		IPAddress:  AnonymizeIP(clientIP(r)),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return repo.Append(r.Context(), entry)
}

// clientIP checks X-Forwarded-For, X-Real-IP and RemoteAddr in that order
// and strips any port.
func clientIP(r *http.Request) string {
	candidate := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			candidate = first
		}
	} else if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		candidate = xri
	}
	if host, _, err := net.SplitHostPort(candidate); err == nil {
		return host
	}
	return candidate
}
