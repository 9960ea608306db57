package app

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/invoiceapp/invoiceapp/internal/platform/httpx"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// AccountHeaderAuthenticator trusts the X-Account-ID header set by the
// authenticating gateway in front of this service and places the account id
// in the request context. Requests without a valid header are rejected.
func AccountHeaderAuthenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, err := uuid.Parse(r.Header.Get("X-Account-ID"))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid account header")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithAccount(r.Context(), accountID)))
	})
}
