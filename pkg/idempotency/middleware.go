package idempotency

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

const HeaderKey = "Idempotency-Key"

// Middleware rejects a request whose Idempotency-Key header was already used
// within the store's TTL. Requests without the header pass through.
//
// A key is released again when the handler rejects the request, so a
// corrected retry may reuse it. 402 keeps the key: the payment was attempted
// and recorded.
func Middleware(log *slog.Logger, d Deduper, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderKey)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(id) > 255 {
				writeError(w, http.StatusBadRequest, "idempotency key too long")
				return
			}
			key := ScopedKey(scope, id)
			seen, err := d.Seen(r.Context(), key)
			if err != nil {
				log.Error("idempotency check failed", "key", id, "err", err)
				writeError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
				return
			}
			if seen {
				log.Info("duplicate request rejected", "key", id)
				writeError(w, http.StatusConflict, "request with this idempotency key already processed")
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if status := ww.Status(); status >= http.StatusBadRequest && status != http.StatusPaymentRequired {
				if err := d.Forget(context.WithoutCancel(r.Context()), key); err != nil {
					log.Error("idempotency release failed", "key", id, "err", err)
				}
			}
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
