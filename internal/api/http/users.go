package http

import (
	"errors"
	"net/http"

	authmw "github.com/mind-engage/academy/internal/auth/middleware"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
}

func ChangePasswordHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		err := d.Users.ChangePassword(r.Context(), caller(r).sub, req.OldPassword, req.NewPassword)
		if errors.Is(err, authmw.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
