package app

import (
	"net/http"

	"github.com/moviex/booking-system/internal/domain"
)

type sessionKey string

const (
	SessionKeyUserId = sessionKey("userID")
	SessionKeyRole   = sessionKey("role")
)

type contextKey string

const contextKeyLogger = contextKey("logger")

func (s sessionKey) String() string {
	return string(s)
}

func (app *Application) contextGetUserId(r *http.Request) int {
	userId, ok := r.Context().Value(SessionKeyUserId).(int)
	if !ok {
		panic("missing user id from context")
	}

	return userId
}

func (app *Application) contextIsAdmin(r *http.Request) bool {
	role, ok := r.Context().Value(SessionKeyRole).(string)

	return ok && role == string(domain.UserRoleAdmin)
}
