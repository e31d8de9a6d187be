package middleware

import (
	"net/http"

	"github.com/tendant/planhub/internal/httputil"
)

// RequireVerified rejects tokens of accounts that have not confirmed their
// email. Must be used after Auth.
func RequireVerified() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !claims.Verified {
				httputil.JSON(w, http.StatusForbidden, httputil.ErrorResponse{
					Error: "email verification required",
					Code:  "VERIFICATION_REQUIRED",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
