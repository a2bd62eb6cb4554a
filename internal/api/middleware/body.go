package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/tutorai/internal/api"
)

const codePayloadTooLarge = "PAYLOAD_TOO_LARGE"

// LimitBody caps request bodies at limit bytes. Declared oversize bodies are
// refused up front; chunked ones fail on read once the cap is crossed.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				api.JSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
					Error: fmt.Sprintf("request body exceeds %d bytes", limit),
					Code:  codePayloadTooLarge,
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
