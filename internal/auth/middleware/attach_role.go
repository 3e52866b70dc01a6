package auth

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/mind-engage/academy/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the stored one when the
// subject is a known user, so demoting a user takes effect before the token
// expires. Subjects with no users row keep their token role only when
// allowClaimFallback is set (offline dev logins).
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub, claimRole := Identity(ctx)

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, sub).Scan(&role)
			switch {
			case err == nil && role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, sql.ErrNoRows):
				if allowClaimFallback && claimRole != "" && claimRole != RoleAdmin {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				log.Printf("attach role %s: %v", sub, err)
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
